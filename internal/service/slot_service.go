package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fitsync/lesson-scheduler/internal/clock"
	"github.com/fitsync/lesson-scheduler/internal/model"
	"github.com/fitsync/lesson-scheduler/internal/notify"
	"go.uber.org/zap"
)

// SlotService covers the trainer side of the timetable: opening new slots and
// retiring existing ones. Retiring a reserved slot refunds the applicant and
// drains the waiting queue, since there is nothing left to wait for.
type SlotService struct {
	store    Store
	clock    clock.Clock
	notifier Notifier
	logger   *zap.Logger
}

func NewSlotService(store Store, clk clock.Clock, notifier Notifier, logger *zap.Logger) *SlotService {
	return &SlotService{
		store:    store,
		clock:    clk,
		notifier: notifier,
		logger:   logger,
	}
}

// RegisterSlot opens a new slot for the trainer. The slot must lie in the
// future and end after it starts.
func (s *SlotService) RegisterSlot(ctx context.Context, trainerID int64, start, end time.Time) (*model.Schedule, error) {
	if !end.After(start) || start.Before(s.clock.Now()) {
		return nil, ErrInvalidSlotTime
	}

	sched := &model.Schedule{
		TrainerID: trainerID,
		StartTime: start,
		EndTime:   end,
		State:     model.Open(),
	}
	if err := s.store.Schedules().Create(ctx, sched); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	s.logger.Info("Slot registered",
		zap.Int64("schedule_id", sched.ID),
		zap.Int64("trainer_id", trainerID),
		zap.Time("start_time", start),
	)
	return sched, nil
}

// RemoveSlot retires one of the trainer's slots. A held reservation is
// refunded to its applicant, and every active waiting entry is consumed.
func (s *SlotService) RemoveSlot(ctx context.Context, scheduleID, trainerID int64) error {
	var refunded *model.ScheduleIDInfo

	err := s.store.InTx(ctx, func(st Store) error {
		sched, err := st.Schedules().GetForUpdate(ctx, scheduleID)
		if err != nil {
			return fmt.Errorf("get schedule: %w", err)
		}
		if sched == nil || sched.State.IsDeleted() {
			return ErrScheduleNotFound
		}
		if sched.TrainerID != trainerID {
			return ErrNotSlotOwner
		}

		if applicant, ok := sched.State.Applicant(); ok {
			if err := refundCurrentCourse(ctx, st, applicant, s.logger); err != nil {
				return err
			}
			refunded = &model.ScheduleIDInfo{
				ScheduleID: sched.ID,
				TrainerID:  sched.TrainerID,
				MemberID:   applicant,
				LessonTime: sched.LessonTime(),
			}
		}

		entries, err := st.Waitings().ListActiveBySchedule(ctx, scheduleID)
		if err != nil {
			return fmt.Errorf("list waiting entries: %w", err)
		}
		for _, entry := range entries {
			if err := st.Waitings().SoftDelete(ctx, entry.ID); err != nil {
				return fmt.Errorf("consume waiting entry: %w", err)
			}
		}

		if err := st.Schedules().SoftDelete(ctx, scheduleID); err != nil {
			return fmt.Errorf("delete schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Slot removed",
		zap.Int64("schedule_id", scheduleID),
		zap.Int64("trainer_id", trainerID),
		zap.Bool("refunded", refunded != nil),
	)
	if refunded != nil {
		s.dispatch(ctx, notify.NewEvent(notify.EventCancelled, refunded.ScheduleID, refunded.TrainerID, refunded.MemberID, refunded.LessonTime))
	}
	return nil
}

func (s *SlotService) dispatch(ctx context.Context, event notify.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("Failed to dispatch notification",
			zap.String("event_id", event.ID.String()),
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
	}
}
