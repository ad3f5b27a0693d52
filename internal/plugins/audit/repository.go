package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AuditRepository defines the data access contract for Communications.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type AuditRepository interface {
	// Insert stores a new entry. CreatedAt is set when zero.
	Insert(ctx context.Context, entry *Entry) error

	// ListRecent returns the newest entries first.
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

// auditRepository implements AuditRepository with MariaDB queries.
type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new repository backed by the given DB pool.
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Insert writes a Communication row.
func (r *auditRepository) Insert(ctx context.Context, entry *Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO communications (id, communication_type, communication_medium,
		        sent_or_received, subject, content, action, details, status, sender,
		        reference_doctype, reference_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CommunicationType, entry.Medium,
		entry.SentOrReceived, entry.Subject, entry.Content, entry.Action,
		entry.Details, string(entry.Status), entry.Sender,
		entry.ReferenceDoctype, entry.ReferenceName, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting communication: %w", err)
	}
	return nil
}

// ListRecent returns up to limit entries, most recent first.
func (r *auditRepository) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, communication_type, communication_medium, sent_or_received,
		        subject, content, action, details, status, sender,
		        reference_doctype, reference_name, created_at
		 FROM communications
		 ORDER BY created_at DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing communications: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(
			&e.ID, &e.CommunicationType, &e.Medium, &e.SentOrReceived,
			&e.Subject, &e.Content, &e.Action, &e.Details, &status, &e.Sender,
			&e.ReferenceDoctype, &e.ReferenceName, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning communication: %w", err)
		}
		e.Status = Status(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating communications: %w", err)
	}
	return entries, nil
}
