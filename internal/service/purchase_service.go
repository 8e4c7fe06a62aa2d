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

// ManualPurchaseNote labels purchases recorded without a note.
const ManualPurchaseNote = "Manual purchase"

type purchaseEnrollmentRepository interface {
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
}

// PurchaseService records session purchases submitted from the billing form.
type PurchaseService struct {
	enrollments purchaseEnrollmentRepository
	ledger      *LedgerService
	status      *StatusService
	tx          database.TxBeginner
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPurchaseService constructs the purchase service.
func NewPurchaseService(enrollments purchaseEnrollmentRepository, ledger *LedgerService, status *StatusService, tx database.TxBeginner, validate *validator.Validate, logger *zap.Logger) *PurchaseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurchaseService{enrollments: enrollments, ledger: ledger, status: status, tx: tx, validator: validate, logger: logger}
}

// RecordPurchase applies the optional discount, writes a PURCHASE entry and re-evaluates the
// enrollment with a fresh end-date projection.
func (s *PurchaseService) RecordPurchase(ctx context.Context, enrollmentID string, req dto.PurchaseRequest, actorID string) (*models.BillingEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid purchase payload")
	}
	note := req.Note
	if note == "" {
		note = ManualPurchaseNote
	}

	today := s.status.Today()
	var entry *models.BillingEntry
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		e, err := s.enrollments.FindByIDForUpdate(ctx, tx, enrollmentID)
		if err != nil {
			return mapNotFound(err, "enrollment not found", "failed to load enrollment")
		}
		discount, err := s.ledger.lookupDiscount(ctx, tx, req.DiscountID)
		if err != nil {
			return err
		}
		entry = purchaseEntry(e.ID, discount, req.UnitPrice, req.Sessions, note, actorID, today)
		if err := s.ledger.AppendEntry(ctx, tx, entry); err != nil {
			return err
		}
		_, err = s.status.evaluate(ctx, tx, e, today, evalOptions{forceEndDate: true})
		return err
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to record purchase")
	}
	s.ledger.InvalidateBalance(ctx, enrollmentID)
	return entry, nil
}
