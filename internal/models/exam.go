package models

import "time"

// AdmissionExam is the one-to-one exam booking for a candidate. Created as a
// placeholder when the fee is paid and re-slotted by the batch distribution;
// the score is written once by grading.
type AdmissionExam struct {
	ID          string    `db:"id" json:"id"`
	CandidateID string    `db:"candidate_id" json:"candidate_id"`
	RoomID      string    `db:"room_id" json:"room_id"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	Score       *float64  `db:"score" json:"score,omitempty"`
	Completed   bool      `db:"completed" json:"completed"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
