package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Transferred and Withdrawn are terminal and
// never auto-transitioned by the term cascade.
const (
	EnrollmentStatusActive      EnrollmentStatus = "ACTIVE"
	EnrollmentStatusConfirmed   EnrollmentStatus = "CONFIRMED"
	EnrollmentStatusConcluded   EnrollmentStatus = "CONCLUDED"
	EnrollmentStatusTransferred EnrollmentStatus = "TRANSFERRED"
	EnrollmentStatusWithdrawn   EnrollmentStatus = "WITHDRAWN"
)

// EnrollmentKind distinguishes a fresh enrollment from a correction.
type EnrollmentKind string

const (
	EnrollmentKindNew  EnrollmentKind = "NEW"
	EnrollmentKindEdit EnrollmentKind = "EDIT"
)

// Enrollment captures a student's registration for a term. SectionID is
// nullable: a student may be enrolled in a term before a section is assigned.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	SectionID      *string          `db:"section_id" json:"section_id,omitempty"`
	TermID         string           `db:"term_id" json:"term_id"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	Kind           EnrollmentKind   `db:"kind" json:"kind"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollment_date"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and section info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string  `db:"student_name" json:"student_name"`
	SectionCode *string `db:"section_code" json:"section_code,omitempty"`
	TermName    string  `db:"term_name" json:"term_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	SectionID string
	TermID    string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
