package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/steam-center-api/internal/models"
)

const enrollmentColumns = `id, student_id, class_id, status, joined_at, start_date, end_date, active, note,
        fee_per_session, sessions_purchased, sessions_consumed, amount_paid, created_at, updated_at`

const enrollmentColumnsPrefixed = `e.id, e.student_id, e.class_id, e.status, e.joined_at, e.start_date, e.end_date, e.active, e.note,
        e.fee_per_session, e.sessions_purchased, e.sessions_consumed, e.amount_paid, e.created_at, e.updated_at`

// EnrollmentRepository handles persistence of enrollments. Methods taking an exec argument run on
// the given transaction, or on the pool when exec is nil.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN classes c ON c.id = e.class_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"joined_at":    "e.joined_at",
		"end_date":     "e.end_date",
		"student_name": "s.full_name",
		"class_name":   "c.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.joined_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s,
        COALESCE(s.full_name, '') AS student_name, COALESCE(c.name, '') AS class_name, COALESCE(c.code, '') AS class_code
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, enrollmentColumnsPrefixed, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.exec(exec), &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByIDForUpdate loads an enrollment and locks its row until the transaction ends.
func (r *EnrollmentRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1 FOR UPDATE`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.exec(exec), &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindLatestForUpdate locks the most recent enrollment of a student in a class.
func (r *EnrollmentRepository) FindLatestForUpdate(ctx context.Context, exec sqlx.ExtContext, studentID, classID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND class_id = $2
        ORDER BY created_at DESC, id DESC LIMIT 1 FOR UPDATE`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.exec(exec), &enrollment, query, studentID, classID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and class names.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := `SELECT ` + enrollmentColumnsPrefixed + `,
        COALESCE(s.full_name, '') AS student_name, COALESCE(c.name, '') AS class_name, COALESCE(c.code, '') AS class_code
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN classes c ON c.id = e.class_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsOpen checks whether the student already has a non-terminal enrollment in the class.
func (r *EnrollmentRepository) ExistsOpen(ctx context.Context, exec sqlx.ExtContext, studentID, classID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2 AND status NOT IN ($3, $4) LIMIT 1`
	var exists int
	err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, studentID, classID,
		models.EnrollmentStatusCancelled, models.EnrollmentStatusCompleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check open enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record. The active flag is derived from the status.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.JoinedAt.IsZero() {
		enrollment.JoinedAt = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusNew
	}
	enrollment.SyncActive()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	const query = `INSERT INTO enrollments (id, student_id, class_id, status, joined_at, start_date, end_date, active, note,
        fee_per_session, sessions_purchased, sessions_consumed, amount_paid, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :status, :joined_at, :start_date, :end_date, :active, :note,
        :fee_per_session, :sessions_purchased, :sessions_consumed, :amount_paid, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateLifecycle persists status, active flag and end date. Active is re-derived from the status.
func (r *EnrollmentRepository) UpdateLifecycle(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	enrollment.SyncActive()
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = $2, active = $3, end_date = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, enrollment.ID, enrollment.Status, enrollment.Active, enrollment.EndDate, enrollment.UpdatedAt); err != nil {
		return fmt.Errorf("update enrollment lifecycle: %w", err)
	}
	return nil
}

// UpdateTerms persists the editable billing terms and dates of an enrollment.
func (r *EnrollmentRepository) UpdateTerms(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET start_date = $2, end_date = $3, fee_per_session = $4, sessions_purchased = $5,
        amount_paid = $6, note = $7, updated_at = $8 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, enrollment.ID, enrollment.StartDate, enrollment.EndDate,
		enrollment.FeePerSession, enrollment.SessionsPurchased, enrollment.AmountPaid, enrollment.Note, enrollment.UpdatedAt); err != nil {
		return fmt.Errorf("update enrollment terms: %w", err)
	}
	return nil
}

// UpdateSessionsConsumed patches only the cached consumption counter.
func (r *EnrollmentRepository) UpdateSessionsConsumed(ctx context.Context, exec sqlx.ExtContext, id string, consumed int64) error {
	const query = `UPDATE enrollments SET sessions_consumed = $2 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, consumed); err != nil {
		return fmt.Errorf("update sessions consumed: %w", err)
	}
	return nil
}

// ListIDsByStatus returns the ids of enrollments in any of the given statuses, oldest first.
func (r *EnrollmentRepository) ListIDsByStatus(ctx context.Context, statuses []models.EnrollmentStatus) ([]string, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	const query = `SELECT id FROM enrollments WHERE status = ANY($1) ORDER BY created_at, id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, pq.Array(values)); err != nil {
		return nil, fmt.Errorf("list enrollment ids by status: %w", err)
	}
	return ids, nil
}
