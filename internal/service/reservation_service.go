package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fitsync/lesson-scheduler/internal/clock"
	"github.com/fitsync/lesson-scheduler/internal/metrics"
	"github.com/fitsync/lesson-scheduler/internal/model"
	"github.com/fitsync/lesson-scheduler/internal/notify"
	"go.uber.org/zap"
)

// ReservationService owns the slot occupancy state machine: reserving a slot,
// cancelling a reservation and promoting from the waiting list. Every
// transition runs in a single transaction with the slot row locked first.
type ReservationService struct {
	store    Store
	clock    clock.Clock
	notifier Notifier
	logger   *zap.Logger
}

func NewReservationService(store Store, clk clock.Clock, notifier Notifier, logger *zap.Logger) *ReservationService {
	return &ReservationService{
		store:    store,
		clock:    clk,
		notifier: notifier,
		logger:   logger,
	}
}

// Reserve books an open slot for the member and debits one lesson credit from
// their current course. The availability check, the credit debit and the state
// change happen atomically.
func (s *ReservationService) Reserve(ctx context.Context, scheduleID, memberID int64) (*model.ScheduleIDInfo, error) {
	var info *model.ScheduleIDInfo

	err := s.store.InTx(ctx, func(st Store) error {
		sched, err := st.Schedules().GetForUpdate(ctx, scheduleID)
		if err != nil {
			return fmt.Errorf("get schedule: %w", err)
		}
		if sched == nil {
			return ErrScheduleNotFound
		}
		if !sched.State.IsOpen() {
			return ErrSlotUnavailable
		}
		// A lesson that has already started cannot be booked.
		if sched.StartTime.Before(s.clock.Now()) {
			return ErrSlotUnavailable
		}

		mapping, err := st.Mappings().CurrentByMember(ctx, memberID)
		if err != nil {
			return fmt.Errorf("get trainer mapping: %w", err)
		}
		if mapping == nil {
			return ErrTrainerNotMapped
		}

		if err := debitCurrentCourse(ctx, st, memberID); err != nil {
			return err
		}

		if err := st.Schedules().UpdateState(ctx, scheduleID, model.ReservedBy(memberID)); err != nil {
			return fmt.Errorf("update schedule state: %w", err)
		}

		info = &model.ScheduleIDInfo{
			ScheduleID: sched.ID,
			TrainerID:  sched.TrainerID,
			MemberID:   memberID,
			LessonTime: sched.LessonTime(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncReservation()
	s.logger.Info("Slot reserved",
		zap.Int64("schedule_id", info.ScheduleID),
		zap.Int64("member_id", memberID),
		zap.Int64("trainer_id", info.TrainerID),
	)
	s.dispatch(ctx, notify.NewEvent(notify.EventReserved, info.ScheduleID, info.TrainerID, memberID, info.LessonTime))

	return info, nil
}

// Cancel releases a reserved slot, refunds the credit and promotes the
// earliest eligible waiting member, if any. The caller must be the active
// applicant or the trainer who owns the slot.
func (s *ReservationService) Cancel(ctx context.Context, scheduleID, memberID int64) (*model.ScheduleIDInfo, error) {
	var info *model.ScheduleIDInfo

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
			return ErrNotReservationOwner
		}
		if applicant != memberID && sched.TrainerID != memberID {
			return ErrNotReservationOwner
		}

		if err := refundCurrentCourse(ctx, st, applicant, s.logger); err != nil {
			return err
		}

		if err := st.Schedules().UpdateState(ctx, scheduleID, model.Open()); err != nil {
			return fmt.Errorf("update schedule state: %w", err)
		}

		promoted, err := s.promoteNext(ctx, st, sched)
		if err != nil {
			return err
		}

		info = &model.ScheduleIDInfo{
			ScheduleID:       sched.ID,
			TrainerID:        sched.TrainerID,
			MemberID:         applicant,
			PromotedMemberID: promoted,
			LessonTime:       sched.LessonTime(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncCancellation()
	s.logger.Info("Reservation cancelled",
		zap.Int64("schedule_id", info.ScheduleID),
		zap.Int64("member_id", info.MemberID),
		zap.Bool("promoted", info.PromotedMemberID != nil),
	)
	s.dispatch(ctx, notify.NewEvent(notify.EventCancelled, info.ScheduleID, info.TrainerID, info.MemberID, info.LessonTime))
	if info.PromotedMemberID != nil {
		s.dispatch(ctx, notify.NewEvent(notify.EventPromoted, info.ScheduleID, info.TrainerID, *info.PromotedMemberID, info.LessonTime))
	}

	return info, nil
}

// promoteNext walks the slot's waiting queue earliest-first and re-reserves
// the slot for the first member whose credit still holds up. Each attempted
// entry is consumed whether or not it wins the slot; a waiter whose credit ran
// out is skipped, not restored, so one exhausted member cannot block the
// queue. A plain loop keeps long queues from growing the stack.
func (s *ReservationService) promoteNext(ctx context.Context, st Store, sched *model.Schedule) (*int64, error) {
	entries, err := st.Waitings().ListActiveBySchedule(ctx, sched.ID)
	if err != nil {
		return nil, fmt.Errorf("list waiting entries: %w", err)
	}

	for _, entry := range entries {
		if err := st.Waitings().SoftDelete(ctx, entry.ID); err != nil {
			return nil, fmt.Errorf("consume waiting entry: %w", err)
		}

		if err := debitCurrentCourse(ctx, st, entry.MemberID); err != nil {
			if errors.Is(err, ErrNoRemainingCredit) {
				metrics.IncPromotion("skipped")
				s.logger.Info("Waiting member skipped, no remaining credit",
					zap.Int64("schedule_id", sched.ID),
					zap.Int64("member_id", entry.MemberID),
				)
				continue
			}
			return nil, err
		}

		if err := st.Schedules().UpdateState(ctx, sched.ID, model.ReservedBy(entry.MemberID)); err != nil {
			return nil, fmt.Errorf("update schedule state: %w", err)
		}

		metrics.IncPromotion("promoted")
		promoted := entry.MemberID
		return &promoted, nil
	}

	return nil, nil
}

// debitCurrentCourse takes one credit from the member's authoritative course.
// The balance is re-checked in the UPDATE itself, so a concurrent debit on the
// same course cannot overdraw it.
func debitCurrentCourse(ctx context.Context, st Store, memberID int64) error {
	course, err := st.Courses().CurrentByMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("get current course: %w", err)
	}
	if course == nil {
		return ErrNoRemainingCredit
	}

	debited, err := st.Courses().Debit(ctx, course.ID)
	if err != nil {
		return fmt.Errorf("debit course: %w", err)
	}
	if !debited {
		return ErrNoRemainingCredit
	}
	return nil
}

// refundCurrentCourse returns one credit to the member's latest course. The
// latest course is used regardless of balance: a reservation that consumed the
// last credit left the balance below the usable floor, and the refund must
// land on that same course.
func refundCurrentCourse(ctx context.Context, st Store, memberID int64, logger *zap.Logger) error {
	course, err := st.Courses().LatestByMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("get latest course: %w", err)
	}
	if course == nil {
		logger.Warn("No course to refund on cancellation", zap.Int64("member_id", memberID))
		return nil
	}

	if err := st.Courses().Credit(ctx, course.ID); err != nil {
		return fmt.Errorf("credit course: %w", err)
	}
	return nil
}

func (s *ReservationService) dispatch(ctx context.Context, event notify.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("Failed to dispatch notification",
			zap.String("event_id", event.ID.String()),
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
	}
}
