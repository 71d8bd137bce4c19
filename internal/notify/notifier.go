// Package notify carries reservation transition events to the outside world.
package notify

import (
	"context"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventReserved  EventKind = "reserved"
	EventCancelled EventKind = "cancelled"
	EventPromoted  EventKind = "promoted"
)

// Event describes one reservation transition. MemberID is the member the
// event is about: the applicant for reservations and cancellations, the
// promoted waiter for promotions.
type Event struct {
	ID         uuid.UUID
	Kind       EventKind
	ScheduleID int64
	TrainerID  int64
	MemberID   int64
	LessonTime string
}

// NewEvent stamps a fresh event ID.
func NewEvent(kind EventKind, scheduleID, trainerID, memberID int64, lessonTime string) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       kind,
		ScheduleID: scheduleID,
		TrainerID:  trainerID,
		MemberID:   memberID,
		LessonTime: lessonTime,
	}
}

// Nop discards every event. Used when no notification channel is configured.
type Nop struct{}

func (Nop) Notify(ctx context.Context, event Event) error {
	return nil
}
