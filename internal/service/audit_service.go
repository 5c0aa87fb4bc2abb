package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/primes-api/internal/dto"
	"github.com/noah-isme/primes-api/internal/models"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
)

// MaxAuditEntries caps a single audit listing.
const MaxAuditEntries = 200

type auditReader interface {
	ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// AuditService exposes the admin audit trail.
type AuditService struct {
	repo   auditReader
	logger *zap.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditReader, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Recent returns up to limit entries, newest first.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]dto.AuditEntry, error) {
	if limit < 1 || limit > MaxAuditEntries {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "limit must be between 1 and 200")
	}
	logs, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}

	entries := make([]dto.AuditEntry, 0, len(logs))
	for _, log := range logs {
		entry := dto.AuditEntry{
			ID:        log.ID,
			Actor:     log.Actor,
			Action:    log.Action,
			Resource:  log.Resource,
			IPAddress: log.IPAddress,
			CreatedAt: log.CreatedAt,
		}
		if log.ResourceID != nil {
			entry.ResourceID = *log.ResourceID
		}
		if len(log.NewValues) > 0 {
			if json.Valid(log.NewValues) {
				entry.Details = json.RawMessage(log.NewValues)
			} else {
				s.logger.Warn("audit entry has malformed details", zap.String("id", log.ID))
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
