package model

import "time"

// ScheduleWaiting is one member's place in a slot's waiting queue.
// Entries are ordered by CreatedAt, earliest first, and are soft-deleted when
// promoted or withdrawn so history survives for lesson logs.
type ScheduleWaiting struct {
	ID         int64     `json:"id"`
	ScheduleID int64     `json:"schedule_id"`
	MemberID   int64     `json:"member_id"`
	DelYn      bool      `json:"del_yn"`
	CreatedAt  time.Time `json:"created_at"`
}
