package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/models"
	"github.com/noah-isme/steam-center-api/pkg/database"
	appErrors "github.com/noah-isme/steam-center-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsOpen(ctx context.Context, exec sqlx.ExtContext, studentID, classID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	UpdateTerms(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	UpdateLifecycle(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
}

// UpdatePurchaseNote labels the purchase entry written when an edit grows the base purchase.
const UpdatePurchaseNote = "Top up from enrollment update"

// EnrollmentService registers, edits and lists enrollments.
type EnrollmentService struct {
	repo      enrollmentRepository
	ledger    *LedgerService
	status    *StatusService
	tx        database.TxBeginner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentRepository, ledger *LedgerService, status *StatusService, tx database.TxBeginner, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, ledger: ledger, status: status, tx: tx, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns an enrollment with student and class names.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "enrollment not found", "failed to load enrollment")
	}
	return detail, nil
}

// Enroll registers a student in a class, writes the automatic purchase entry and projects the end date.
func (s *EnrollmentService) Enroll(ctx context.Context, req dto.EnrollRequest, actorID string) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	status := req.Status
	if status == "" {
		status = models.EnrollmentStatusNew
	}
	enrollment := &models.Enrollment{
		StudentID:         req.StudentID,
		ClassID:           req.ClassID,
		Status:            status,
		StartDate:         req.StartDate,
		Note:              req.Note,
		FeePerSession:     req.FeePerSession,
		SessionsPurchased: req.SessionsPurchased,
		AmountPaid:        req.AmountPaid,
	}

	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		exists, err := s.repo.ExistsOpen(ctx, tx, req.StudentID, req.ClassID)
		if err != nil {
			return err
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "student already has an open enrollment in this class")
		}
		discount, err := s.ledger.lookupDiscount(ctx, tx, req.DiscountID)
		if err != nil {
			return err
		}
		if err := s.repo.Create(ctx, tx, enrollment); err != nil {
			return err
		}
		if _, err := s.ledger.createPurchaseEntryTx(ctx, tx, enrollment, discount, AutoPurchaseNote, false, actorID); err != nil {
			return err
		}
		projected, err := s.status.projectEndDate(ctx, tx, enrollment)
		if err != nil {
			return err
		}
		if projected != nil {
			enrollment.EndDate = projected
			return s.repo.UpdateLifecycle(ctx, tx, enrollment)
		}
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to create enrollment")
	}
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("class_id", enrollment.ClassID),
		zap.String("actor_id", actorID),
	)
	return enrollment, nil
}

// Update edits the billing terms and dates of an enrollment. When the base purchase grows a
// PURCHASE entry is forced for it. The enrollment is then re-evaluated; the end date is
// re-projected unless the edit sets one explicitly.
func (s *EnrollmentService) Update(ctx context.Context, id string, req dto.UpdateEnrollmentRequest, actorID string) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if req.StartDate != nil && req.EndDate != nil && models.DateOf(*req.EndDate).Before(models.DateOf(*req.StartDate)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}

	today := s.status.Today()
	var (
		enrollment *models.Enrollment
		topUp      *models.BillingEntry
	)
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		e, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return mapNotFound(err, "enrollment not found", "failed to load enrollment")
		}
		discount, err := s.ledger.lookupDiscount(ctx, tx, req.DiscountID)
		if err != nil {
			return err
		}

		previousBase := baseSessions(e)
		applyEnrollmentEdit(e, req)
		if err := s.repo.UpdateTerms(ctx, tx, e); err != nil {
			return err
		}
		if baseSessions(e) > previousBase {
			if topUp, err = s.ledger.createPurchaseEntryTx(ctx, tx, e, discount, UpdatePurchaseNote, true, actorID); err != nil {
				return err
			}
		}
		if _, err := s.status.evaluate(ctx, tx, e, today, evalOptions{forceEndDate: req.EndDate == nil}); err != nil {
			return err
		}
		enrollment = e
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to update enrollment")
	}

	s.ledger.InvalidateBalance(ctx, id)
	fields := []zap.Field{
		zap.String("enrollment_id", id),
		zap.String("status", string(enrollment.Status)),
		zap.String("actor_id", actorID),
	}
	if topUp != nil {
		fields = append(fields, zap.Int64("purchased_sessions", topUp.Sessions))
	}
	s.logger.Info("enrollment updated", fields...)
	return enrollment, nil
}

func applyEnrollmentEdit(e *models.Enrollment, req dto.UpdateEnrollmentRequest) {
	if req.StartDate != nil {
		start := models.DateOf(*req.StartDate)
		e.StartDate = &start
	}
	if req.EndDate != nil {
		end := models.DateOf(*req.EndDate)
		e.EndDate = &end
	}
	if req.FeePerSession != nil {
		e.FeePerSession = *req.FeePerSession
	}
	if req.SessionsPurchased != nil {
		e.SessionsPurchased = *req.SessionsPurchased
	}
	if req.AmountPaid != nil {
		e.AmountPaid = *req.AmountPaid
	}
	if req.Note != nil {
		e.Note = *req.Note
	}
}
