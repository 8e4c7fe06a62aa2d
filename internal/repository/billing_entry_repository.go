package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/steam-center-api/internal/models"
)

// BillingEntryRepository appends and reads ledger rows. Entries are never updated or deleted.
type BillingEntryRepository struct {
	db *sqlx.DB
}

// NewBillingEntryRepository constructs the repository.
func NewBillingEntryRepository(db *sqlx.DB) *BillingEntryRepository {
	return &BillingEntryRepository{db: db}
}

func (r *BillingEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create appends a ledger entry.
func (r *BillingEntryRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.BillingEntry) error {
	if entry == nil {
		return fmt.Errorf("billing entry payload is nil")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO billing_entries (id, enrollment_id, entry_type, sessions, unit_price, discount_id, discount_amount, amount, note, created_by, created_at)
        VALUES (:id, :enrollment_id, :entry_type, :sessions, :unit_price, :discount_id, :discount_amount, :amount, :note, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("create billing entry: %w", err)
	}
	return nil
}

// ExistsByType reports whether the enrollment already has an entry of the given type.
func (r *BillingEntryRepository) ExistsByType(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, entryType models.BillingEntryType) (bool, error) {
	const query = `SELECT 1 FROM billing_entries WHERE enrollment_id = $1 AND entry_type = $2 LIMIT 1`
	var exists int
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, enrollmentID, entryType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check billing entry: %w", err)
	}
	return true, nil
}

// SumSessions returns the sum of signed session deltas of all entries for the enrollment.
func (r *BillingEntryRepository) SumSessions(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(sessions), 0) FROM billing_entries WHERE enrollment_id = $1`
	var total int64
	if err := sqlx.GetContext(ctx, r.exec(exec), &total, query, enrollmentID); err != nil {
		return 0, fmt.Errorf("sum billing sessions: %w", err)
	}
	return total, nil
}

// ListByEnrollment returns the ledger of an enrollment, newest first.
func (r *BillingEntryRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.BillingEntry, error) {
	const query = `SELECT id, enrollment_id, entry_type, sessions, unit_price, discount_id, discount_amount, amount, note, created_by, created_at
        FROM billing_entries WHERE enrollment_id = $1 ORDER BY created_at DESC, id DESC`
	var entries []models.BillingEntry
	if err := r.db.SelectContext(ctx, &entries, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list billing entries: %w", err)
	}
	return entries, nil
}
