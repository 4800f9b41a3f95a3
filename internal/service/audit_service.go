package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/edusuite/siga-api/internal/models"
)

type auditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditEntry describes one state transition for the audit trail.
type AuditEntry struct {
	Action     string
	ActorID    string
	Resource   string
	ResourceID string
	Before     interface{}
	After      interface{}
}

// AuditService records state transitions best-effort: a failed write is
// logged and never surfaces to the caller, so audit problems cannot roll back
// the transition they describe.
type AuditService struct {
	repo   auditLogRepository
	logger *zap.Logger
}

// NewAuditService constructs an audit service.
func NewAuditService(repo auditLogRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record persists the entry, swallowing failures.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	if s.repo == nil {
		return
	}

	log := &models.AuditLog{
		Action:   entry.Action,
		Resource: entry.Resource,
	}
	if entry.ActorID != "" {
		log.ActorID = &entry.ActorID
	}
	if entry.ResourceID != "" {
		log.ResourceID = &entry.ResourceID
	}
	if entry.Before != nil {
		if raw, err := json.Marshal(entry.Before); err == nil {
			log.OldValues = raw
		}
	}
	if entry.After != nil {
		if raw, err := json.Marshal(entry.After); err == nil {
			log.NewValues = raw
		}
	}

	if err := s.repo.Create(ctx, log); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err))
	}
}
