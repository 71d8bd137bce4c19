package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fitsync/lesson-scheduler/internal/clock"
	"github.com/fitsync/lesson-scheduler/internal/model"
	"github.com/fitsync/lesson-scheduler/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

const (
	trainerID = int64(100)
	memberA   = int64(201)
	memberB   = int64(202)
	memberC   = int64(203)
)

type recordingNotifier struct {
	events []notify.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, event notify.Event) error {
	n.events = append(n.events, event)
	return nil
}

func newReservationService(store Store) (*ReservationService, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return NewReservationService(store, clock.Fixed(testNow), notifier, zap.NewNop()), notifier
}

func futureStart() time.Time {
	return time.Date(2024, 5, 12, 9, 0, 0, 0, time.UTC)
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("books an open slot and debits one credit", func(t *testing.T) {
		store := newMemStore()
		store.addMapping(trainerID, memberA, testNow.AddDate(0, -1, 0))
		course := store.addCourse(memberA, 5, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.Open())

		svc, notifier := newReservationService(store)
		info, err := svc.Reserve(ctx, sched.ID, memberA)
		require.NoError(t, err)

		assert.Equal(t, sched.ID, info.ScheduleID)
		assert.Equal(t, trainerID, info.TrainerID)
		assert.Equal(t, memberA, info.MemberID)
		assert.Nil(t, info.PromotedMemberID)
		assert.Equal(t, "09:00 - 10:00", info.LessonTime)

		applicant, ok := store.schedules[sched.ID].State.Applicant()
		require.True(t, ok)
		assert.Equal(t, memberA, applicant)
		assert.Equal(t, 4, store.courses[course.ID].RemainLessonCnt)

		require.Len(t, notifier.events, 1)
		assert.Equal(t, notify.EventReserved, notifier.events[0].Kind)
	})

	t.Run("rejects a slot that is already reserved", func(t *testing.T) {
		store := newMemStore()
		store.addMapping(trainerID, memberB, testNow.AddDate(0, -1, 0))
		store.addCourse(memberB, 5, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.ReservedBy(memberA))

		svc, _ := newReservationService(store)
		_, err := svc.Reserve(ctx, sched.ID, memberB)
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	})

	t.Run("rejects a deleted slot", func(t *testing.T) {
		store := newMemStore()
		store.addMapping(trainerID, memberA, testNow.AddDate(0, -1, 0))
		store.addCourse(memberA, 5, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.Deleted())

		svc, _ := newReservationService(store)
		_, err := svc.Reserve(ctx, sched.ID, memberA)
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	})

	t.Run("rejects a slot that already started", func(t *testing.T) {
		store := newMemStore()
		store.addMapping(trainerID, memberA, testNow.AddDate(0, -1, 0))
		store.addCourse(memberA, 5, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, testNow.Add(-time.Hour), model.Open())

		svc, _ := newReservationService(store)
		_, err := svc.Reserve(ctx, sched.ID, memberA)
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	})

	t.Run("fails when the schedule does not exist", func(t *testing.T) {
		store := newMemStore()
		svc, _ := newReservationService(store)
		_, err := svc.Reserve(ctx, 9999, memberA)
		assert.ErrorIs(t, err, ErrScheduleNotFound)
	})

	t.Run("fails without a trainer mapping", func(t *testing.T) {
		store := newMemStore()
		store.addCourse(memberA, 5, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.Open())

		svc, _ := newReservationService(store)
		_, err := svc.Reserve(ctx, sched.ID, memberA)
		assert.ErrorIs(t, err, ErrTrainerNotMapped)
	})

	t.Run("fails without any course", func(t *testing.T) {
		store := newMemStore()
		store.addMapping(trainerID, memberA, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.Open())

		svc, _ := newReservationService(store)
		_, err := svc.Reserve(ctx, sched.ID, memberA)
		assert.ErrorIs(t, err, ErrNoRemainingCredit)
	})

	// Pins the usable-floor boundary: a course with zero remaining lessons is
	// still accepted and goes negative on debit.
	t.Run("course with zero remaining is still usable", func(t *testing.T) {
		store := newMemStore()
		store.addMapping(trainerID, memberA, testNow.AddDate(0, -1, 0))
		course := store.addCourse(memberA, 0, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.Open())

		svc, _ := newReservationService(store)
		_, err := svc.Reserve(ctx, sched.ID, memberA)
		require.NoError(t, err)
		assert.Equal(t, -1, store.courses[course.ID].RemainLessonCnt)
	})

	t.Run("course below the floor is not usable", func(t *testing.T) {
		store := newMemStore()
		store.addMapping(trainerID, memberA, testNow.AddDate(0, -1, 0))
		store.addCourse(memberA, model.UsableFloor, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.Open())

		svc, _ := newReservationService(store)
		_, err := svc.Reserve(ctx, sched.ID, memberA)
		assert.ErrorIs(t, err, ErrNoRemainingCredit)
	})

	t.Run("debits the most recently created usable course", func(t *testing.T) {
		store := newMemStore()
		store.addMapping(trainerID, memberA, testNow.AddDate(0, -1, 0))
		older := store.addCourse(memberA, 3, testNow.AddDate(0, -3, 0))
		newer := store.addCourse(memberA, 2, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.Open())

		svc, _ := newReservationService(store)
		_, err := svc.Reserve(ctx, sched.ID, memberA)
		require.NoError(t, err)
		assert.Equal(t, 3, store.courses[older.ID].RemainLessonCnt)
		assert.Equal(t, 1, store.courses[newer.ID].RemainLessonCnt)
	})
}

func TestReserveConcurrent(t *testing.T) {
	ctx := context.Background()

	store := newMemStore()
	members := []int64{memberA, memberB, memberC, 204, 205, 206, 207, 208}
	for _, id := range members {
		store.addMapping(trainerID, id, testNow.AddDate(0, -1, 0))
		store.addCourse(id, 3, testNow.AddDate(0, -1, 0))
	}
	sched := store.addSchedule(trainerID, futureStart(), model.Open())

	svc, _ := newReservationService(store)

	var wg sync.WaitGroup
	results := make(chan error, len(members))
	for _, id := range members {
		wg.Add(1)
		go func(memberID int64) {
			defer wg.Done()
			_, err := svc.Reserve(ctx, sched.ID, memberID)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var succeeded, unavailable int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrSlotUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Exactly one booking wins; the slot never holds two applicants.
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, len(members)-1, unavailable)
	_, ok := store.schedules[sched.ID].State.Applicant()
	assert.True(t, ok)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("reserve then cancel restores credit and reopens the slot", func(t *testing.T) {
		store := newMemStore()
		store.addMapping(trainerID, memberA, testNow.AddDate(0, -1, 0))
		course := store.addCourse(memberA, 5, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.Open())

		svc, _ := newReservationService(store)
		_, err := svc.Reserve(ctx, sched.ID, memberA)
		require.NoError(t, err)

		info, err := svc.Cancel(ctx, sched.ID, memberA)
		require.NoError(t, err)

		assert.Equal(t, memberA, info.MemberID)
		assert.Nil(t, info.PromotedMemberID)
		assert.True(t, store.schedules[sched.ID].State.IsOpen())
		assert.Equal(t, 5, store.courses[course.ID].RemainLessonCnt)
	})

	t.Run("rejects a caller who is neither applicant nor trainer", func(t *testing.T) {
		store := newMemStore()
		store.addCourse(memberA, 5, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.ReservedBy(memberA))

		svc, _ := newReservationService(store)
		_, err := svc.Cancel(ctx, sched.ID, memberB)
		assert.ErrorIs(t, err, ErrNotReservationOwner)
	})

	t.Run("rejects cancelling an open slot", func(t *testing.T) {
		store := newMemStore()
		sched := store.addSchedule(trainerID, futureStart(), model.Open())

		svc, _ := newReservationService(store)
		_, err := svc.Cancel(ctx, sched.ID, memberA)
		assert.ErrorIs(t, err, ErrNotReservationOwner)
	})

	t.Run("slot trainer may cancel on the applicant's behalf", func(t *testing.T) {
		store := newMemStore()
		course := store.addCourse(memberA, 0, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.ReservedBy(memberA))

		svc, _ := newReservationService(store)
		info, err := svc.Cancel(ctx, sched.ID, trainerID)
		require.NoError(t, err)

		assert.Equal(t, memberA, info.MemberID)
		assert.True(t, store.schedules[sched.ID].State.IsOpen())
		assert.Equal(t, 1, store.courses[course.ID].RemainLessonCnt)
	})

	t.Run("promotes the earliest waiter and leaves later ones queued", func(t *testing.T) {
		store := newMemStore()
		courseA := store.addCourse(memberA, 2, testNow.AddDate(0, -1, 0))
		courseB := store.addCourse(memberB, 1, testNow.AddDate(0, -1, 0))
		store.addCourse(memberC, 1, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.ReservedBy(memberA))
		w1 := store.addWaiting(sched.ID, memberB, testNow.Add(-2*time.Hour))
		w2 := store.addWaiting(sched.ID, memberC, testNow.Add(-time.Hour))

		svc, notifier := newReservationService(store)
		info, err := svc.Cancel(ctx, sched.ID, memberA)
		require.NoError(t, err)

		require.NotNil(t, info.PromotedMemberID)
		assert.Equal(t, memberB, *info.PromotedMemberID)

		applicant, ok := store.schedules[sched.ID].State.Applicant()
		require.True(t, ok)
		assert.Equal(t, memberB, applicant)

		assert.Equal(t, 3, store.courses[courseA.ID].RemainLessonCnt)
		assert.Equal(t, 0, store.courses[courseB.ID].RemainLessonCnt)
		assert.True(t, store.waitings[w1.ID].DelYn)
		assert.False(t, store.waitings[w2.ID].DelYn)

		require.Len(t, notifier.events, 2)
		assert.Equal(t, notify.EventCancelled, notifier.events[0].Kind)
		assert.Equal(t, notify.EventPromoted, notifier.events[1].Kind)
		assert.Equal(t, memberB, notifier.events[1].MemberID)
	})

	t.Run("skips an exhausted waiter and keeps their entry consumed", func(t *testing.T) {
		store := newMemStore()
		store.addCourse(memberA, 2, testNow.AddDate(0, -1, 0))
		store.addCourse(memberB, model.UsableFloor, testNow.AddDate(0, -1, 0))
		courseC := store.addCourse(memberC, 1, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.ReservedBy(memberA))
		w1 := store.addWaiting(sched.ID, memberB, testNow.Add(-2*time.Hour))
		w2 := store.addWaiting(sched.ID, memberC, testNow.Add(-time.Hour))

		svc, _ := newReservationService(store)
		info, err := svc.Cancel(ctx, sched.ID, memberA)
		require.NoError(t, err)

		require.NotNil(t, info.PromotedMemberID)
		assert.Equal(t, memberC, *info.PromotedMemberID)

		applicant, ok := store.schedules[sched.ID].State.Applicant()
		require.True(t, ok)
		assert.Equal(t, memberC, applicant)

		// The skipped waiter is consumed, not restored.
		assert.True(t, store.waitings[w1.ID].DelYn)
		assert.True(t, store.waitings[w2.ID].DelYn)
		assert.Equal(t, 0, store.courses[courseC.ID].RemainLessonCnt)
	})

	t.Run("slot stays open when every waiter is exhausted", func(t *testing.T) {
		store := newMemStore()
		store.addCourse(memberA, 2, testNow.AddDate(0, -1, 0))
		sched := store.addSchedule(trainerID, futureStart(), model.ReservedBy(memberA))
		w1 := store.addWaiting(sched.ID, memberB, testNow.Add(-2*time.Hour))
		w2 := store.addWaiting(sched.ID, memberC, testNow.Add(-time.Hour))

		svc, _ := newReservationService(store)
		info, err := svc.Cancel(ctx, sched.ID, memberA)
		require.NoError(t, err)

		assert.Nil(t, info.PromotedMemberID)
		assert.True(t, store.schedules[sched.ID].State.IsOpen())
		assert.True(t, store.waitings[w1.ID].DelYn)
		assert.True(t, store.waitings[w2.ID].DelYn)
	})
}
