package models

import "time"

// StudentStatus represents the lifecycle of a student record.
type StudentStatus string

// Transferred is terminal; the term cascade never touches it.
const (
	StudentStatusActive      StudentStatus = "ACTIVE"
	StudentStatusInactive    StudentStatus = "INACTIVE"
	StudentStatusTransferred StudentStatus = "TRANSFERRED"
	StudentStatusConcluded   StudentStatus = "CONCLUDED"
)

// Student represents a learner registered in the institution.
// CurrentSectionID is a denormalized pointer mirroring the student's latest
// enrollment; it is maintained by the matriculation and cascade paths, never
// mutated directly.
type Student struct {
	ID               string        `db:"id" json:"id"`
	FullName         string        `db:"full_name" json:"full_name"`
	Gender           string        `db:"gender" json:"gender"`
	BirthDate        time.Time     `db:"birth_date" json:"birth_date"`
	DocumentNumber   string        `db:"document_number" json:"document_number"`
	Email            string        `db:"email" json:"email"`
	Phone            string        `db:"phone" json:"phone"`
	Address          string        `db:"address" json:"address"`
	GuardianID       *string       `db:"guardian_id" json:"guardian_id,omitempty"`
	Status           StudentStatus `db:"status" json:"status"`
	CurrentSectionID *string       `db:"current_section_id" json:"current_section_id,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	Status   StudentStatus
	Page     int
	PageSize int
}
