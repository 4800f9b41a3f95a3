package models

import "time"

// TermStatus represents the lifecycle state of an academic term.
type TermStatus string

const (
	TermStatusPlanned   TermStatus = "PLANNED"
	TermStatusActive    TermStatus = "ACTIVE"
	TermStatusClosed    TermStatus = "CLOSED"
	TermStatusSuspended TermStatus = "SUSPENDED"
)

// Term models an academic term (school year) within the institution calendar.
// IsActive is a legacy mirror of Status == ACTIVE kept in sync on every
// status write; at most one term is active system-wide.
type Term struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	EndDate        time.Time  `db:"end_date" json:"end_date"`
	Status         TermStatus `db:"status" json:"status"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	AdmissionOpen  bool       `db:"admission_open" json:"admission_open"`
	AdmissionClose *time.Time `db:"admission_close" json:"admission_close,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	Status    TermStatus
	IsActive  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
