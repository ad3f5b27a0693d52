package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

// AuditService handles business logic for Communications. It validates
// entries, derives their fixed attributes and delegates persistence.
type AuditService interface {
	// Record is the fire-and-forget variant of Log: failures are logged
	// and dropped so auditing never blocks the primary operation.
	Record(ctx context.Context, entry Entry)

	// Log validates and persists an entry, returning any failure.
	Log(ctx context.Context, entry *Entry) error

	// Recent returns the newest entries. limit is clamped to [1, 100];
	// zero selects the default of 20.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// auditService implements AuditService.
type auditService struct {
	repo AuditRepository
}

// NewAuditService creates a new audit service with the given repository.
func NewAuditService(repo AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// Record persists an entry and swallows any error after logging it.
func (s *auditService) Record(ctx context.Context, entry Entry) {
	if err := s.Log(ctx, &entry); err != nil && apperror.Is(err, apperror.KindValidation) {
		slog.Warn("dropping invalid audit entry",
			slog.String("action", entry.Action),
			slog.Any("error", err),
		)
	}
}

// Log validates and persists an entry. Store failures are recorded via slog
// before being returned.
func (s *auditService) Log(ctx context.Context, entry *Entry) error {
	if entry.Action == "" {
		return apperror.NewBadRequest("action is required for audit entry")
	}
	if !entry.Status.Valid() {
		return apperror.NewBadRequest(fmt.Sprintf("invalid audit status %q", entry.Status))
	}

	if entry.ID == "" {
		entry.ID = newID()
	}
	entry.fillDefaults()

	if err := s.repo.Insert(ctx, entry); err != nil {
		slog.Error("failed to write audit entry",
			slog.String("action", entry.Action),
			slog.String("status", string(entry.Status)),
			slog.Any("error", err),
		)
		return apperror.NewPersistence(fmt.Errorf("writing audit entry: %w", err))
	}

	return nil
}

// Recent returns the newest Communications.
func (s *auditService) Recent(ctx context.Context, limit int) ([]Entry, error) {
	switch {
	case limit == 0:
		limit = defaultRecentCommunications
	case limit < 1:
		limit = 1
	case limit > maxRecentCommunications:
		limit = maxRecentCommunications
	}

	entries, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperror.NewPersistence(fmt.Errorf("listing communications: %w", err))
	}
	return entries, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
