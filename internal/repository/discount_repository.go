package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/steam-center-api/internal/models"
)

const discountColumns = `id, code, name, percent, amount, max_amount, active, start_date, end_date, usage_limit, usage_count, note, created_at, updated_at`

// DiscountRepository persists discount rules.
type DiscountRepository struct {
	db *sqlx.DB
}

// NewDiscountRepository constructs the repository.
func NewDiscountRepository(db *sqlx.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

func (r *DiscountRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns discounts ordered by code.
func (r *DiscountRepository) List(ctx context.Context, activeOnly bool, page, size int) ([]models.Discount, int, error) {
	clause := ""
	if activeOnly {
		clause = " WHERE active = TRUE"
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM discounts%s ORDER BY code ASC LIMIT %d OFFSET %d`, discountColumns, clause, size, (page-1)*size)
	var discounts []models.Discount
	if err := r.db.SelectContext(ctx, &discounts, query); err != nil {
		return nil, 0, fmt.Errorf("list discounts: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM discounts"+clause); err != nil {
		return nil, 0, fmt.Errorf("count discounts: %w", err)
	}
	return discounts, total, nil
}

// FindByID returns a discount by id.
func (r *DiscountRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Discount, error) {
	query := `SELECT ` + discountColumns + ` FROM discounts WHERE id = $1`
	var discount models.Discount
	if err := sqlx.GetContext(ctx, r.exec(exec), &discount, query, id); err != nil {
		return nil, err
	}
	return &discount, nil
}

// FindByCode returns a discount by its unique code.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	query := `SELECT ` + discountColumns + ` FROM discounts WHERE code = $1`
	var discount models.Discount
	if err := r.db.GetContext(ctx, &discount, query, code); err != nil {
		return nil, err
	}
	return &discount, nil
}

// Create inserts a discount rule.
func (r *DiscountRepository) Create(ctx context.Context, discount *models.Discount) error {
	if discount.ID == "" {
		discount.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	discount.CreatedAt = now
	discount.UpdatedAt = now
	const query = `INSERT INTO discounts (id, code, name, percent, amount, max_amount, active, start_date, end_date, usage_limit, usage_count, note, created_at, updated_at)
        VALUES (:id, :code, :name, :percent, :amount, :max_amount, :active, :start_date, :end_date, :usage_limit, :usage_count, :note, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, discount); err != nil {
		return fmt.Errorf("create discount: %w", err)
	}
	return nil
}

// Delete removes a discount. Ledger entries referencing it keep their amounts and lose the reference.
// Update rewrites the editable fields of a discount. It reports false when no row matched.
func (r *DiscountRepository) Update(ctx context.Context, discount *models.Discount) (bool, error) {
	discount.UpdatedAt = time.Now().UTC()
	const query = `UPDATE discounts SET code = :code, name = :name, percent = :percent, amount = :amount, max_amount = :max_amount,
        active = :active, start_date = :start_date, end_date = :end_date, usage_limit = :usage_limit, note = :note, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, discount)
	if err != nil {
		return false, fmt.Errorf("update discount: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update discount rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *DiscountRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete discount: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete discount rows affected: %w", err)
	}
	return affected > 0, nil
}
