package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fitsync/lesson-scheduler/internal/clock"
	"github.com/fitsync/lesson-scheduler/internal/model"
	"go.uber.org/zap"
)

// ScheduleQueryService serves the read side: trainer timetables with per-viewer
// display status, and a member's own reservations. It never mutates state.
type ScheduleQueryService struct {
	store  Store
	clock  clock.Clock
	logger *zap.Logger
}

func NewScheduleQueryService(store Store, clk clock.Clock, logger *zap.Logger) *ScheduleQueryService {
	return &ScheduleQueryService{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// ListTrainerSchedules lists the slots of the member's currently mapped
// trainer, split into morning and afternoon buckets with the display status
// projected for this member.
func (s *ScheduleQueryService) ListTrainerSchedules(ctx context.Context, memberID int64, cond model.ScheduleSearchCond) (*model.Timetable, error) {
	mapping, err := s.store.Mappings().CurrentByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("get trainer mapping: %w", err)
	}
	if mapping == nil {
		return nil, ErrTrainerNotMapped
	}

	schedules, err := s.store.Schedules().ListByTrainer(ctx, mapping.TrainerID, cond)
	if err != nil {
		return nil, fmt.Errorf("list trainer schedules: %w", err)
	}

	displays, err := s.project(ctx, schedules, memberID)
	if err != nil {
		return nil, err
	}

	morning, afternoon := model.SplitByNoon(displays)
	return &model.Timetable{Morning: morning, Afternoon: afternoon}, nil
}

// ListByApplicant lists the non-deleted slots where the member is the active
// applicant, earliest lesson first.
func (s *ScheduleQueryService) ListByApplicant(ctx context.Context, memberID int64) ([]model.ScheduleDisplay, error) {
	schedules, err := s.store.Schedules().ListByApplicant(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list schedules by applicant: %w", err)
	}
	return s.project(ctx, schedules, memberID)
}

// ListMyReservations returns the member's reservations from today onward
// together with their current course.
func (s *ScheduleQueryService) ListMyReservations(ctx context.Context, memberID int64, cond model.ScheduleSearchCond) (*model.MyReservationSummary, error) {
	course, err := s.store.Courses().CurrentByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("get current course: %w", err)
	}

	reservations, err := s.store.Schedules().ListUpcomingByApplicant(ctx, memberID, s.today(), cond)
	if err != nil {
		return nil, fmt.Errorf("list upcoming reservations: %w", err)
	}

	return &model.MyReservationSummary{
		Course:       course,
		Reservations: reservations,
	}, nil
}

// NextReservation returns the member's closest upcoming reservation, or nil.
func (s *ScheduleQueryService) NextReservation(ctx context.Context, memberID int64) (*model.Schedule, error) {
	sched, err := s.store.Schedules().FirstUpcomingByApplicant(ctx, memberID, s.today())
	if err != nil {
		return nil, fmt.Errorf("get next reservation: %w", err)
	}
	return sched, nil
}

func (s *ScheduleQueryService) project(ctx context.Context, schedules []*model.Schedule, viewerID int64) ([]model.ScheduleDisplay, error) {
	ids := make([]int64, 0, len(schedules))
	for _, sched := range schedules {
		ids = append(ids, sched.ID)
	}

	waitingCounts, err := s.store.Waitings().CountActiveBySchedules(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count waiting entries: %w", err)
	}

	now := s.clock.Now()
	displays := make([]model.ScheduleDisplay, 0, len(schedules))
	for _, sched := range schedules {
		count := waitingCounts[sched.ID]
		displays = append(displays, model.ScheduleDisplay{
			Schedule:      *sched,
			DisplayStatus: model.ProjectDisplay(sched, viewerID, count > 0, now),
			WaitingCount:  count,
		})
	}
	return displays, nil
}

func (s *ScheduleQueryService) today() time.Time {
	now := s.clock.Now()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}
