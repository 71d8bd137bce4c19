package model

// ScheduleIDInfo identifies the parties affected by a state transition. It is
// what reserve/cancel hand back to callers for rendering and notifications,
// never a raw storage row.
type ScheduleIDInfo struct {
	ScheduleID       int64  `json:"schedule_id"`
	TrainerID        int64  `json:"trainer_id"`
	MemberID         int64  `json:"member_id"`
	PromotedMemberID *int64 `json:"promoted_member_id,omitempty"`
	LessonTime       string `json:"lesson_time"`
}

// Timetable is a trainer's slot listing split for presentation.
type Timetable struct {
	Morning   []ScheduleDisplay `json:"morning"`
	Afternoon []ScheduleDisplay `json:"afternoon"`
}

// MyReservationSummary pairs a member's upcoming reservations with their
// current course. Course is nil when no usable course exists.
type MyReservationSummary struct {
	Course       *Course     `json:"course,omitempty"`
	Reservations []*Schedule `json:"reservations"`
}

// MyWaitingSummary pairs a member's active waiting entries with their current
// course.
type MyWaitingSummary struct {
	Course   *Course            `json:"course,omitempty"`
	Waitings []*ScheduleWaiting `json:"waitings"`
}
