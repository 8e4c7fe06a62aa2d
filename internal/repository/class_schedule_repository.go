package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ClassScheduleRepository reads the weekly meeting pattern of classes.
type ClassScheduleRepository struct {
	db *sqlx.DB
}

// NewClassScheduleRepository constructs the repository.
func NewClassScheduleRepository(db *sqlx.DB) *ClassScheduleRepository {
	return &ClassScheduleRepository{db: db}
}

// Weekdays returns the distinct meeting weekdays of a class (0=Monday), ascending.
func (r *ClassScheduleRepository) Weekdays(ctx context.Context, exec sqlx.ExtContext, classID string) ([]int, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT DISTINCT day_of_week FROM class_schedules WHERE class_id = $1 ORDER BY day_of_week`
	var days []int
	if err := sqlx.SelectContext(ctx, exec, &days, query, classID); err != nil {
		return nil, fmt.Errorf("list class weekdays: %w", err)
	}
	return days, nil
}
