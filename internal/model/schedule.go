package model

import (
	"fmt"
	"time"
)

type SlotStatus string

const (
	SlotStatusOpen     SlotStatus = "open"
	SlotStatusReserved SlotStatus = "reserved"
	SlotStatusDeleted  SlotStatus = "deleted"
)

// SlotState is the occupancy state of a schedule slot. It is a closed set:
// Open, ReservedBy(member) or Deleted. A reserved state always carries its
// applicant, so "reserved with no applicant" cannot be constructed.
type SlotState struct {
	status    SlotStatus
	applicant int64
}

func Open() SlotState {
	return SlotState{status: SlotStatusOpen}
}

func ReservedBy(memberID int64) SlotState {
	return SlotState{status: SlotStatusReserved, applicant: memberID}
}

func Deleted() SlotState {
	return SlotState{status: SlotStatusDeleted}
}

func (s SlotState) IsOpen() bool {
	return s.status == SlotStatusOpen
}

func (s SlotState) IsDeleted() bool {
	return s.status == SlotStatusDeleted
}

// Applicant returns the active applicant and true when the slot is reserved.
func (s SlotState) Applicant() (int64, bool) {
	if s.status != SlotStatusReserved {
		return 0, false
	}
	return s.applicant, true
}

func (s SlotState) Status() SlotStatus {
	return s.status
}

// StateFromRow rebuilds a SlotState from its persisted columns.
func StateFromRow(status SlotStatus, applicantID *int64) (SlotState, error) {
	switch status {
	case SlotStatusOpen:
		return Open(), nil
	case SlotStatusDeleted:
		return Deleted(), nil
	case SlotStatusReserved:
		if applicantID == nil {
			return SlotState{}, fmt.Errorf("reserved slot without applicant")
		}
		return ReservedBy(*applicantID), nil
	default:
		return SlotState{}, fmt.Errorf("unknown slot status %q", status)
	}
}

// ApplicantID returns the applicant as a nullable column value.
func (s SlotState) ApplicantID() *int64 {
	if id, ok := s.Applicant(); ok {
		return &id
	}
	return nil
}

// Schedule is a trainer's single bookable lesson slot.
type Schedule struct {
	ID        int64     `json:"id"`
	TrainerID int64     `json:"trainer_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	State     SlotState `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// LessonDate is the calendar day of the lesson, midnight in the slot's location.
func (s *Schedule) LessonDate() time.Time {
	y, m, d := s.StartTime.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.StartTime.Location())
}

// LessonTime formats the slot window as "15:00 - 16:00" for notifications.
func (s *Schedule) LessonTime() string {
	return s.StartTime.Format("15:04") + " - " + s.EndTime.Format("15:04")
}

// ScheduleSearchCond narrows schedule listings. LessonMonth is a "200601"
// month key; StartDt/EndDt select an inclusive date range. Empty fields are
// ignored.
type ScheduleSearchCond struct {
	LessonMonth string
	StartDt     *time.Time
	EndDt       *time.Time
}
