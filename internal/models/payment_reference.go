package models

import "time"

// ReferenceStatus represents the payment state of an admission-fee reference.
type ReferenceStatus string

const (
	ReferenceStatusPending ReferenceStatus = "PENDING"
	ReferenceStatusPaid    ReferenceStatus = "PAID"
)

// PaymentReference is a bank reference issued for the admission fee. A
// candidate may hold at most two ever issued unless one is currently valid or
// paid; a paid reference blocks new issues.
type PaymentReference struct {
	ID          string          `db:"id" json:"id"`
	CandidateID string          `db:"candidate_id" json:"candidate_id"`
	Code        string          `db:"code" json:"code"`
	Amount      float64         `db:"amount" json:"amount"`
	Status      ReferenceStatus `db:"status" json:"status"`
	IssuedAt    time.Time       `db:"issued_at" json:"issued_at"`
	ExpiresAt   time.Time       `db:"expires_at" json:"expires_at"`
	PaidAt      *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
}

// Expired reports whether the reference window has elapsed at the given time.
func (r PaymentReference) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
