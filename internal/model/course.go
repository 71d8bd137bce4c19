package model

import "time"

// UsableFloor is the exclusive lower bound on RemainLessonCnt for a course to
// count as usable. The boundary admits zero: a course with 0 remaining lessons
// still books one more time and goes negative on debit. Tests pin this
// behavior; changing the boundary is a one-line change here.
const UsableFloor = -1

// Course is a member's purchased bundle of lesson credits.
type Course struct {
	ID              int64     `json:"id"`
	MemberID        int64     `json:"member_id"`
	RemainLessonCnt int       `json:"remain_lesson_cnt"`
	CreatedAt       time.Time `json:"created_at"`
}

func (c *Course) Usable() bool {
	return c.RemainLessonCnt > UsableFloor
}
