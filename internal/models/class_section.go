package models

import "time"

// SectionStatus represents the lifecycle of a class section.
type SectionStatus string

const (
	SectionStatusActive    SectionStatus = "ACTIVE"
	SectionStatusConcluded SectionStatus = "CONCLUDED"
)

// ClassSection is a concrete class offering within a term: one course at one
// grade level, in one room, on one shift. Code is derived from those parts and
// recomputed whenever any of them changes.
type ClassSection struct {
	ID           string        `db:"id" json:"id"`
	Code         string        `db:"code" json:"code"`
	RoomID       string        `db:"room_id" json:"room_id"`
	CourseID     string        `db:"course_id" json:"course_id"`
	GradeLevelID string        `db:"grade_level_id" json:"grade_level_id"`
	ShiftID      string        `db:"shift_id" json:"shift_id"`
	Capacity     int           `db:"capacity" json:"capacity"`
	Status       SectionStatus `db:"status" json:"status"`
	TermID       string        `db:"term_id" json:"term_id"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// SectionCodeParts carries the catalog attributes a section code is derived
// from.
type SectionCodeParts struct {
	CourseCode string `db:"course_code"`
	GradeLevel int    `db:"grade_level"`
	ShiftCode  string `db:"shift_code"`
	RoomNumber int    `db:"room_number"`
}

// SectionFilter provides filters for listing class sections.
type SectionFilter struct {
	TermID   string
	CourseID string
	Status   SectionStatus
	Page     int
	PageSize int
}
