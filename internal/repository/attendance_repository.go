package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/steam-center-api/internal/models"
)

// AttendanceRepository reads attendance rows owned by the attendance module.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// CountAttended counts distinct attended records of a student across the sessions of a class.
func (r *AttendanceRepository) CountAttended(ctx context.Context, exec sqlx.ExtContext, studentID, classID string) (int64, error) {
	if exec == nil {
		exec = r.db
	}
	statuses := make([]string, len(models.AttendedStatuses))
	for i, s := range models.AttendedStatuses {
		statuses[i] = string(s)
	}
	const query = `SELECT COUNT(DISTINCT a.id) FROM attendances a
        JOIN class_sessions cs ON cs.id = a.session_id
        WHERE cs.class_id = $1 AND a.student_id = $2 AND a.status = ANY($3)`
	var count int64
	if err := sqlx.GetContext(ctx, exec, &count, query, classID, studentID, pq.Array(statuses)); err != nil {
		return 0, fmt.Errorf("count attended sessions: %w", err)
	}
	return count, nil
}
