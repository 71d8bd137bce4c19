package service

import (
	"context"
	"time"

	"github.com/fitsync/lesson-scheduler/internal/model"
	"github.com/fitsync/lesson-scheduler/internal/notify"
)

// ScheduleRepository reads and mutates schedule slots. Lookup methods return
// nil, nil when no row matches.
type ScheduleRepository interface {
	Create(ctx context.Context, sched *model.Schedule) error
	SoftDelete(ctx context.Context, scheduleID int64) error
	// GetForUpdate loads a slot and, inside a transaction, takes a row lock
	// on it so concurrent reserve/cancel calls on the same slot serialize.
	GetForUpdate(ctx context.Context, scheduleID int64) (*model.Schedule, error)
	UpdateState(ctx context.Context, scheduleID int64, state model.SlotState) error
	ListByTrainer(ctx context.Context, trainerID int64, cond model.ScheduleSearchCond) ([]*model.Schedule, error)
	ListByApplicant(ctx context.Context, memberID int64) ([]*model.Schedule, error)
	ListUpcomingByApplicant(ctx context.Context, memberID int64, from time.Time, cond model.ScheduleSearchCond) ([]*model.Schedule, error)
	FirstUpcomingByApplicant(ctx context.Context, memberID int64, from time.Time) (*model.Schedule, error)
}

// WaitingRepository manages waiting-list entries. Active means not
// soft-deleted; listings come back earliest-first.
type WaitingRepository interface {
	Create(ctx context.Context, w *model.ScheduleWaiting) error
	ActiveByScheduleAndMember(ctx context.Context, scheduleID, memberID int64) (*model.ScheduleWaiting, error)
	ListActiveBySchedule(ctx context.Context, scheduleID int64) ([]*model.ScheduleWaiting, error)
	ListActiveByMember(ctx context.Context, memberID int64) ([]*model.ScheduleWaiting, error)
	CountActiveBySchedules(ctx context.Context, scheduleIDs []int64) (map[int64]int, error)
	SoftDelete(ctx context.Context, id int64) error
}

// CourseRepository is the credit ledger. CurrentByMember picks the
// authoritative course: the most recently created one whose remaining count is
// above model.UsableFloor.
type CourseRepository interface {
	CurrentByMember(ctx context.Context, memberID int64) (*model.Course, error)
	LatestByMember(ctx context.Context, memberID int64) (*model.Course, error)
	// Debit decrements the course balance by one. It reports false when the
	// balance was no longer above the usable floor at write time.
	Debit(ctx context.Context, courseID int64) (bool, error)
	Credit(ctx context.Context, courseID int64) error
}

// MappingRepository resolves a member's currently mapped trainer.
type MappingRepository interface {
	CurrentByMember(ctx context.Context, memberID int64) (*model.TrainerMemberMapping, error)
}

// Store aggregates the repositories and scopes them to one unit of work.
// InTx runs fn against a store bound to a single transaction; the transaction
// commits when fn returns nil and rolls back wholly otherwise.
type Store interface {
	Schedules() ScheduleRepository
	Waitings() WaitingRepository
	Courses() CourseRepository
	Mappings() MappingRepository
	InTx(ctx context.Context, fn func(Store) error) error
}

// Notifier dispatches transition events to members and trainers.
// Dispatch is fire-and-forget: failures are logged by callers and never roll
// back the transition that produced the event.
type Notifier interface {
	Notify(ctx context.Context, event notify.Event) error
}
