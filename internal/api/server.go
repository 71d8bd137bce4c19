// Package api exposes the scheduling operations over JSON for the gateway.
// Authentication lives upstream: requests arrive with the resolved member ID
// in the X-Member-ID header.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fitsync/lesson-scheduler/internal/model"
	"github.com/fitsync/lesson-scheduler/internal/service"
	"go.uber.org/zap"
)

type Server struct {
	reservations *service.ReservationService
	waitings     *service.WaitingService
	queries      *service.ScheduleQueryService
	slots        *service.SlotService
	logger       *zap.Logger
}

func NewServer(
	reservations *service.ReservationService,
	waitings *service.WaitingService,
	queries *service.ScheduleQueryService,
	slots *service.SlotService,
	logger *zap.Logger,
) *Server {
	return &Server{
		reservations: reservations,
		waitings:     waitings,
		queries:      queries,
		slots:        slots,
		logger:       logger,
	}
}

// Register mounts all routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /schedules", s.handleListTrainerSchedules)
	mux.HandleFunc("POST /schedules", s.handleRegisterSlot)
	mux.HandleFunc("DELETE /schedules/{id}", s.handleRemoveSlot)
	mux.HandleFunc("GET /schedules/applicant", s.handleListByApplicant)
	mux.HandleFunc("GET /reservations/my", s.handleListMyReservations)
	mux.HandleFunc("GET /reservations/next", s.handleNextReservation)
	mux.HandleFunc("POST /schedules/{id}/reserve", s.handleReserve)
	mux.HandleFunc("POST /schedules/{id}/cancel", s.handleCancel)
	mux.HandleFunc("POST /schedules/{id}/waiting", s.handleJoinWaiting)
	mux.HandleFunc("DELETE /schedules/{id}/waiting", s.handleWithdrawWaiting)
	mux.HandleFunc("GET /waitings/my", s.handleListMyWaitings)
}

func (s *Server) handleListTrainerSchedules(w http.ResponseWriter, r *http.Request) {
	memberID, ok := s.memberID(w, r)
	if !ok {
		return
	}

	cond, err := searchCond(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	timetable, err := s.queries.ListTrainerSchedules(r.Context(), memberID, cond)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, timetable)
}

func (s *Server) handleListByApplicant(w http.ResponseWriter, r *http.Request) {
	memberID, ok := s.memberID(w, r)
	if !ok {
		return
	}

	schedules, err := s.queries.ListByApplicant(r.Context(), memberID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, schedules)
}

func (s *Server) handleListMyReservations(w http.ResponseWriter, r *http.Request) {
	memberID, ok := s.memberID(w, r)
	if !ok {
		return
	}

	cond, err := searchCond(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.queries.ListMyReservations(r.Context(), memberID, cond)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleNextReservation(w http.ResponseWriter, r *http.Request) {
	memberID, ok := s.memberID(w, r)
	if !ok {
		return
	}

	sched, err := s.queries.NextReservation(r.Context(), memberID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sched == nil {
		s.writeJSON(w, http.StatusOK, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleRegisterSlot(w http.ResponseWriter, r *http.Request) {
	trainerID, ok := s.memberID(w, r)
	if !ok {
		return
	}

	var req struct {
		StartTime time.Time `json:"start_time"`
		EndTime   time.Time `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	sched, err := s.slots.RegisterSlot(r.Context(), trainerID, req.StartTime, req.EndTime)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sched)
}

func (s *Server) handleRemoveSlot(w http.ResponseWriter, r *http.Request) {
	trainerID, scheduleID, ok := s.memberAndSchedule(w, r)
	if !ok {
		return
	}

	if err := s.slots.RemoveSlot(r.Context(), scheduleID, trainerID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	memberID, scheduleID, ok := s.memberAndSchedule(w, r)
	if !ok {
		return
	}

	info, err := s.reservations.Reserve(r.Context(), scheduleID, memberID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	memberID, scheduleID, ok := s.memberAndSchedule(w, r)
	if !ok {
		return
	}

	info, err := s.reservations.Cancel(r.Context(), scheduleID, memberID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleJoinWaiting(w http.ResponseWriter, r *http.Request) {
	memberID, scheduleID, ok := s.memberAndSchedule(w, r)
	if !ok {
		return
	}

	entry, err := s.waitings.Join(r.Context(), scheduleID, memberID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleWithdrawWaiting(w http.ResponseWriter, r *http.Request) {
	memberID, scheduleID, ok := s.memberAndSchedule(w, r)
	if !ok {
		return
	}

	if err := s.waitings.Withdraw(r.Context(), scheduleID, memberID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (s *Server) handleListMyWaitings(w http.ResponseWriter, r *http.Request) {
	memberID, ok := s.memberID(w, r)
	if !ok {
		return
	}

	summary, err := s.waitings.ListMyWaitings(r.Context(), memberID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) memberID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-Member-ID")
	memberID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || memberID <= 0 {
		s.writeJSON(w, http.StatusUnauthorized, errorBody("missing or invalid member identity"))
		return 0, false
	}
	return memberID, true
}

func (s *Server) memberAndSchedule(w http.ResponseWriter, r *http.Request) (memberID, scheduleID int64, ok bool) {
	memberID, ok = s.memberID(w, r)
	if !ok {
		return 0, 0, false
	}

	scheduleID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || scheduleID <= 0 {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid schedule id"))
		return 0, 0, false
	}
	return memberID, scheduleID, true
}

func searchCond(r *http.Request) (model.ScheduleSearchCond, error) {
	var cond model.ScheduleSearchCond

	cond.LessonMonth = r.URL.Query().Get("month")

	startRaw := r.URL.Query().Get("start_dt")
	endRaw := r.URL.Query().Get("end_dt")
	if startRaw != "" && endRaw != "" {
		start, err := time.Parse("2006-01-02", startRaw)
		if err != nil {
			return cond, errBadRequest
		}
		end, err := time.Parse("2006-01-02", endRaw)
		if err != nil {
			return cond, errBadRequest
		}
		cond.StartDt = &start
		cond.EndDt = &end
	}

	return cond, nil
}

var errBadRequest = errors.New("invalid date filter")

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		s.writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, service.ErrScheduleNotFound),
		errors.Is(err, service.ErrWaitingEntryNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, service.ErrTrainerNotMapped),
		errors.Is(err, service.ErrInvalidSlotTime):
		s.writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, service.ErrNotSlotOwner):
		s.writeJSON(w, http.StatusForbidden, errorBody(err.Error()))
	case service.IsValidationError(err):
		s.writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		// Storage failures stay opaque to callers.
		s.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		s.writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if body == nil {
		_, _ = w.Write([]byte("null"))
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
