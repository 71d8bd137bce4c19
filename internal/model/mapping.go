package model

import "time"

// TrainerMemberMapping links a member to the trainer currently coaching them.
// A member can have several rows over time; the most recently created one is
// authoritative.
type TrainerMemberMapping struct {
	ID        int64     `json:"id"`
	TrainerID int64     `json:"trainer_id"`
	MemberID  int64     `json:"member_id"`
	CreatedAt time.Time `json:"created_at"`
}
