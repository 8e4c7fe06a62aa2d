package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/models"
	appErrors "github.com/noah-isme/steam-center-api/pkg/errors"
)

type discountRepository interface {
	List(ctx context.Context, activeOnly bool, page, size int) ([]models.Discount, int, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Discount, error)
	FindByCode(ctx context.Context, code string) (*models.Discount, error)
	Create(ctx context.Context, discount *models.Discount) error
	Update(ctx context.Context, discount *models.Discount) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// DiscountService manages discount rules.
type DiscountService struct {
	repo      discountRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDiscountService constructs the discount service.
func NewDiscountService(repo discountRepository, validate *validator.Validate, logger *zap.Logger) *DiscountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountService{repo: repo, validator: validate, logger: logger}
}

// Create validates and stores a discount. Codes are unique case-insensitively.
func (s *DiscountService) Create(ctx context.Context, req dto.CreateDiscountRequest) (*models.Discount, error) {
	code, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, code, ""); err != nil {
		return nil, err
	}

	discount := &models.Discount{Active: true}
	applyDiscountRequest(discount, code, req)
	if err := s.repo.Create(ctx, discount); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create discount")
	}
	s.logger.Info("discount created", zap.String("discount_id", discount.ID), zap.String("code", discount.Code))
	return discount, nil
}

// Update replaces the editable fields of a discount. Usage counters are kept.
func (s *DiscountService) Update(ctx context.Context, id string, req dto.UpdateDiscountRequest) (*models.Discount, error) {
	code, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}
	discount, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, mapNotFound(err, "discount not found", "failed to load discount")
	}
	if err := s.ensureCodeFree(ctx, code, discount.ID); err != nil {
		return nil, err
	}

	applyDiscountRequest(discount, code, req)
	updated, err := s.repo.Update(ctx, discount)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update discount")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "discount not found")
	}
	s.logger.Info("discount updated", zap.String("discount_id", discount.ID), zap.String("code", discount.Code), zap.Bool("active", discount.Active))
	return discount, nil
}

// validateRequest checks the payload and returns the normalised code.
func (s *DiscountService) validateRequest(req dto.CreateDiscountRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid discount payload")
	}
	if req.Percent.IsNegative() || req.Percent.GreaterThan(hundred) {
		return "", appErrors.Clone(appErrors.ErrValidation, "percent must be between 0 and 100")
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return "", appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "code is required")
	}
	return code, nil
}

// ensureCodeFree fails when another discount than ownID already uses code.
func (s *DiscountService) ensureCodeFree(ctx context.Context, code, ownID string) error {
	existing, err := s.repo.FindByCode(ctx, code)
	switch {
	case err == nil:
		if existing.ID != ownID {
			return appErrors.Clone(appErrors.ErrConflict, "discount code already exists")
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check discount code")
	}
}

func applyDiscountRequest(discount *models.Discount, code string, req dto.CreateDiscountRequest) {
	discount.Code = code
	discount.Name = strings.TrimSpace(req.Name)
	discount.Percent = req.Percent.Round(2)
	discount.Amount = req.Amount
	discount.MaxAmount = req.MaxAmount
	if req.Active != nil {
		discount.Active = *req.Active
	}
	discount.StartDate = req.StartDate
	discount.EndDate = req.EndDate
	discount.UsageLimit = req.UsageLimit
	discount.Note = req.Note
}

// List returns discounts with pagination metadata.
func (s *DiscountService) List(ctx context.Context, filter dto.DiscountFilter) ([]models.Discount, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	items, total, err := s.repo.List(ctx, filter.ActiveOnly, filter.Page, filter.PageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list discounts")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a discount by id.
func (s *DiscountService) Get(ctx context.Context, id string) (*models.Discount, error) {
	discount, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, mapNotFound(err, "discount not found", "failed to load discount")
	}
	return discount, nil
}

// Delete removes a discount. Ledger entries keep their amounts.
func (s *DiscountService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete discount")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "discount not found")
	}
	s.logger.Info("discount deleted", zap.String("discount_id", id))
	return nil
}
