package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/steam-center-api/internal/models"
)

// StatusLogRepository appends enrollment status audit rows.
type StatusLogRepository struct {
	db *sqlx.DB
}

// NewStatusLogRepository constructs the repository.
func NewStatusLogRepository(db *sqlx.DB) *StatusLogRepository {
	return &StatusLogRepository{db: db}
}

// Create inserts a status log row on the given executor.
func (r *StatusLogRepository) Create(ctx context.Context, exec sqlx.ExtContext, log *models.EnrollmentStatusLog) error {
	if exec == nil {
		exec = r.db
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_status_logs (id, enrollment_id, old_status, new_status, reason, note, actor_id, created_at)
        VALUES (:id, :enrollment_id, :old_status, :new_status, :reason, :note, :actor_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, log); err != nil {
		return fmt.Errorf("create enrollment status log: %w", err)
	}
	return nil
}

// ListByEnrollment returns the audit history of an enrollment, newest first.
func (r *StatusLogRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.EnrollmentStatusLog, error) {
	const query = `SELECT id, enrollment_id, old_status, new_status, reason, note, actor_id, created_at
        FROM enrollment_status_logs WHERE enrollment_id = $1 ORDER BY created_at DESC, id DESC`
	var logs []models.EnrollmentStatusLog
	if err := r.db.SelectContext(ctx, &logs, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment status logs: %w", err)
	}
	return logs, nil
}
