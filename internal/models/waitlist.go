package models

import "time"

// WaitlistStatus represents the state of a waitlist entry.
type WaitlistStatus string

const (
	WaitlistStatusWaiting WaitlistStatus = "WAITING"
	WaitlistStatusCalled  WaitlistStatus = "CALLED"
	WaitlistStatusExpired WaitlistStatus = "EXPIRED"
)

// WaitlistEntry queues a candidate for a later admission decision. Higher
// priority is served first; entry time breaks ties, earliest first.
type WaitlistEntry struct {
	ID          string         `db:"id" json:"id"`
	CandidateID string         `db:"candidate_id" json:"candidate_id"`
	Priority    int            `db:"priority" json:"priority"`
	Status      WaitlistStatus `db:"status" json:"status"`
	EnteredAt   time.Time      `db:"entered_at" json:"entered_at"`
}
