package model

import "time"

// DisplayStatus is the per-viewer availability annotation computed on read
// paths. It is derived on every query and never persisted.
type DisplayStatus string

const (
	DisplayOpen            DisplayStatus = "open"
	DisplayReservedBySelf  DisplayStatus = "reserved_by_self"
	DisplayReservedByOther DisplayStatus = "reserved_by_other"
	DisplaySoldOut         DisplayStatus = "sold_out"
)

// ScheduleDisplay is a schedule with its projected status for one viewer.
type ScheduleDisplay struct {
	Schedule
	DisplayStatus DisplayStatus `json:"display_status"`
	WaitingCount  int           `json:"waiting_count"`
}

// ProjectDisplay derives the display status of a slot for the given viewer.
// Same-day slots are frozen from new bookings, a populated waiting list marks
// the slot exhausted to new viewers, and past slots are naturally closed; all
// three project as sold out regardless of the underlying state.
func ProjectDisplay(s *Schedule, viewerID int64, hasWaiting bool, now time.Time) DisplayStatus {
	if hasWaiting || sameDay(s.StartTime, now) || s.StartTime.Before(now) {
		return DisplaySoldOut
	}
	if applicant, ok := s.State.Applicant(); ok {
		if applicant == viewerID {
			return DisplayReservedBySelf
		}
		return DisplayReservedByOther
	}
	return DisplayOpen
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SplitByNoon partitions slots into morning and afternoon listing buckets.
// Morning is strictly before 12:00, afternoon strictly after; a slot starting
// exactly at noon lands in neither bucket. Input order is preserved, so lists
// already sorted by date and start time stay sorted.
func SplitByNoon(items []ScheduleDisplay) (morning, afternoon []ScheduleDisplay) {
	for _, it := range items {
		h, m, sec := it.StartTime.Clock()
		sinceMidnight := h*3600 + m*60 + sec
		switch {
		case sinceMidnight < 12*3600:
			morning = append(morning, it)
		case sinceMidnight > 12*3600:
			afternoon = append(afternoon, it)
		}
	}
	return morning, afternoon
}
