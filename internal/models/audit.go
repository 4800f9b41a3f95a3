package models

import "time"

// AuditAction constants represent state transitions to be logged.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionTermActivate      = "TERM_ACTIVATE"
	AuditActionTermClose         = "TERM_CLOSE"
	AuditActionTermReopen        = "TERM_REOPEN"
	AuditActionTermDelete        = "TERM_DELETE"
	AuditActionCandidateRegister = "CANDIDATE_REGISTER"
	AuditActionCandidateReview   = "CANDIDATE_REVIEW"
	AuditActionReferenceIssue    = "REFERENCE_ISSUE"
	AuditActionReferencePaid     = "REFERENCE_PAID"
	AuditActionExamDistribute    = "EXAM_DISTRIBUTE"
	AuditActionExamGrade         = "EXAM_GRADE"
	AuditActionMatriculate       = "MATRICULATE"
	AuditActionSectionCreate     = "SECTION_CREATE"
	AuditActionSectionUpdate     = "SECTION_UPDATE"
	AuditActionSectionSwap       = "SECTION_SWAP"
	AuditActionWaitlistCall      = "WAITLIST_CALL"
)

// AuditLog represents an audit trail record. Writes are best-effort: a failed
// audit insert never rolls back the transition it describes.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
