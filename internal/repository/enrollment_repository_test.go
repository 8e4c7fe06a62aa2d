package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/steam-center-api/internal/models"
)

var enrollmentRowColumns = []string{"id", "student_id", "class_id", "status", "joined_at", "start_date", "end_date", "active", "note",
	"fee_per_session", "sessions_purchased", "sessions_consumed", "amount_paid", "created_at", "updated_at"}

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func enrollmentRow(id string, status models.EnrollmentStatus) *sqlmock.Rows {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(enrollmentRowColumns).
		AddRow(id, "stu-1", "class-1", status, now, now, nil, status.IsActive(), "", 100000, 10, 2, 0, now, now)
}

func TestEnrollmentRepositoryFindByIDForUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM enrollments WHERE id = \$1 FOR UPDATE`).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow("enr-1", models.EnrollmentStatusActive))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	enrollment, err := repo.FindByIDForUpdate(context.Background(), tx, "enr-1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(100000), enrollment.FeePerSession)
	assert.Equal(t, int64(2), enrollment.SessionsConsumed)
	assert.Nil(t, enrollment.EndDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindLatestForUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 AND class_id = $2")).
		WithArgs("stu-1", "class-1").
		WillReturnRows(enrollmentRow("enr-2", models.EnrollmentStatusNew))

	enrollment, err := repo.FindLatestForUpdate(context.Background(), nil, "stu-1", "class-1")
	require.NoError(t, err)
	assert.Equal(t, "enr-2", enrollment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(`FROM enrollments WHERE id = \$1`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEnrollmentRepositoryExistsOpen(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2 AND status NOT IN ($3, $4) LIMIT 1")).
		WithArgs("stu-1", "class-1", models.EnrollmentStatusCancelled, models.EnrollmentStatusCompleted).
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsOpen(context.Background(), nil, "stu-1", "class-1")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDerivesActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "class-1", models.EnrollmentStatusPaused, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			false, "", int64(50000), int64(4), int64(0), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{
		StudentID:         "stu-1",
		ClassID:           "class-1",
		Status:            models.EnrollmentStatusPaused,
		Active:            true,
		FeePerSession:     50000,
		SessionsPurchased: 4,
	}
	require.NoError(t, repo.Create(context.Background(), nil, enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.False(t, enrollment.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateLifecycle(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, active = $3, end_date = $4, updated_at = $5 WHERE id = $1")).
		WithArgs("enr-1", models.EnrollmentStatusCancelled, false, &end, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusCancelled, Active: true, EndDate: &end}
	require.NoError(t, repo.UpdateLifecycle(context.Background(), nil, enrollment))
	assert.False(t, enrollment.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateTerms(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET start_date = $2, end_date = $3, fee_per_session = $4, sessions_purchased = $5")).
		WithArgs("enr-1", &start, nil, int64(120000), int64(12), int64(0), "term 2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{ID: "enr-1", StartDate: &start, FeePerSession: 120000, SessionsPurchased: 12, Note: "term 2"}
	require.NoError(t, repo.UpdateTerms(context.Background(), nil, enrollment))
	assert.False(t, enrollment.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateSessionsConsumedTouchesOnlyCounter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET sessions_consumed = $2 WHERE id = $1")).
		WithArgs("enr-1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateSessionsConsumed(context.Background(), nil, "enr-1", 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListIDsByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM enrollments WHERE status = ANY($1) ORDER BY created_at, id")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("enr-1").AddRow("enr-2"))

	ids, err := repo.ListIDsByStatus(context.Background(), models.SweepStatuses)
	require.NoError(t, err)
	assert.Equal(t, []string{"enr-1", "enr-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	columns := append(append([]string{}, enrollmentRowColumns...), "student_name", "class_name", "class_code")
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = $1 AND e.status = $2 ORDER BY e.joined_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("class-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("enr-1", "stu-1", "class-1", "ACTIVE", now, nil, nil, true, "", 100000, 10, 0, 0, now, now, "An", "Robotics", "RB1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("class-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.EnrollmentFilter{ClassID: "class-1", Status: models.EnrollmentStatusActive})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Robotics", items[0].ClassName)
	require.NoError(t, mock.ExpectationsWereMet())
}
