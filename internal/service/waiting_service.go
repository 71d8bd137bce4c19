package service

import (
	"context"
	"fmt"

	"github.com/fitsync/lesson-scheduler/internal/clock"
	"github.com/fitsync/lesson-scheduler/internal/metrics"
	"github.com/fitsync/lesson-scheduler/internal/model"
	"go.uber.org/zap"
)

// WaitingService manages a slot's waiting queue. Promotion out of the queue
// lives in ReservationService.Cancel; this service only handles members
// joining and leaving.
type WaitingService struct {
	store  Store
	clock  clock.Clock
	logger *zap.Logger
}

func NewWaitingService(store Store, clk clock.Clock, logger *zap.Logger) *WaitingService {
	return &WaitingService{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// Join appends the member to the slot's waiting queue. Waiting is only
// meaningful on a reserved slot: an open slot should be reserved instead, and
// the active applicant has nothing to wait for.
func (s *WaitingService) Join(ctx context.Context, scheduleID, memberID int64) (*model.ScheduleWaiting, error) {
	var entry *model.ScheduleWaiting

	err := s.store.InTx(ctx, func(st Store) error {
		sched, err := st.Schedules().GetForUpdate(ctx, scheduleID)
		if err != nil {
			return fmt.Errorf("get schedule: %w", err)
		}
		if sched == nil || sched.State.IsDeleted() {
			return ErrScheduleNotFound
		}

		applicant, ok := sched.State.Applicant()
		if !ok {
			return ErrSlotNotReserved
		}
		if applicant == memberID {
			return ErrAlreadySlotApplicant
		}

		existing, err := st.Waitings().ActiveByScheduleAndMember(ctx, scheduleID, memberID)
		if err != nil {
			return fmt.Errorf("get waiting entry: %w", err)
		}
		if existing != nil {
			return ErrDuplicateWaitingEntry
		}

		entry = &model.ScheduleWaiting{
			ScheduleID: scheduleID,
			MemberID:   memberID,
			CreatedAt:  s.clock.Now(),
		}
		if err := st.Waitings().Create(ctx, entry); err != nil {
			return fmt.Errorf("create waiting entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncWaitingJoined()
	s.logger.Info("Joined waiting list",
		zap.Int64("schedule_id", scheduleID),
		zap.Int64("member_id", memberID),
		zap.Int64("waiting_id", entry.ID),
	)

	return entry, nil
}

// Withdraw removes the caller's active entry from the slot's queue. A second
// withdraw of the same entry fails: the entry is already consumed.
func (s *WaitingService) Withdraw(ctx context.Context, scheduleID, memberID int64) error {
	err := s.store.InTx(ctx, func(st Store) error {
		entry, err := st.Waitings().ActiveByScheduleAndMember(ctx, scheduleID, memberID)
		if err != nil {
			return fmt.Errorf("get waiting entry: %w", err)
		}
		if entry == nil {
			return ErrWaitingEntryNotFound
		}

		if err := st.Waitings().SoftDelete(ctx, entry.ID); err != nil {
			return fmt.Errorf("delete waiting entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Left waiting list",
		zap.Int64("schedule_id", scheduleID),
		zap.Int64("member_id", memberID),
	)

	return nil
}

// ListMyWaitings returns the member's active waiting entries together with
// their current course. Course is nil when no usable course exists.
func (s *WaitingService) ListMyWaitings(ctx context.Context, memberID int64) (*model.MyWaitingSummary, error) {
	waitings, err := s.store.Waitings().ListActiveByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list waiting entries: %w", err)
	}

	course, err := s.store.Courses().CurrentByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("get current course: %w", err)
	}

	return &model.MyWaitingSummary{
		Course:   course,
		Waitings: waitings,
	}, nil
}
