package models

import "time"

// CandidateStatus represents the admission pipeline stage of a candidate.
type CandidateStatus string

const (
	CandidateStatusPending     CandidateStatus = "PENDING"
	CandidateStatusUnderReview CandidateStatus = "UNDER_REVIEW"
	CandidateStatusConfirmed   CandidateStatus = "CONFIRMED"
	CandidateStatusPaid        CandidateStatus = "PAID"
	CandidateStatusScheduled   CandidateStatus = "SCHEDULED"
	CandidateStatusApproved    CandidateStatus = "APPROVED"
	CandidateStatusNotAdmitted CandidateStatus = "NOT_ADMITTED"
	CandidateStatusRejected    CandidateStatus = "REJECTED"
	CandidateStatusEnrolled    CandidateStatus = "ENROLLED"
)

// Candidate is a prospective student in the admission pipeline.
// AdmissionNumber follows INS<year><4-digit-seq>, unique and gap-free per
// calendar year; it is assigned at creation under an optimistic retry loop.
type Candidate struct {
	ID                   string          `db:"id" json:"id"`
	AdmissionNumber      string          `db:"admission_number" json:"admission_number"`
	FullName             string          `db:"full_name" json:"full_name"`
	Gender               string          `db:"gender" json:"gender"`
	BirthDate            time.Time       `db:"birth_date" json:"birth_date"`
	DocumentNumber       string          `db:"document_number" json:"document_number"`
	Email                string          `db:"email" json:"email"`
	Phone                string          `db:"phone" json:"phone"`
	GuardianName         string          `db:"guardian_name" json:"guardian_name"`
	GuardianPhone        string          `db:"guardian_phone" json:"guardian_phone"`
	PreviousSchool       string          `db:"previous_school" json:"previous_school"`
	FirstChoiceCourseID  string          `db:"first_choice_course_id" json:"first_choice_course_id"`
	SecondChoiceCourseID *string         `db:"second_choice_course_id" json:"second_choice_course_id,omitempty"`
	TermID               string          `db:"term_id" json:"term_id"`
	Status               CandidateStatus `db:"status" json:"status"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// CandidateFilter provides filters for listing candidates.
type CandidateFilter struct {
	TermID   string
	Status   CandidateStatus
	Search   string
	Page     int
	PageSize int
}
