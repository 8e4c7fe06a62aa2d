package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/models"
	"github.com/noah-isme/steam-center-api/pkg/database"
	appErrors "github.com/noah-isme/steam-center-api/pkg/errors"
)

type transferEnrollmentRepository interface {
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
}

// TransferService moves prepaid sessions between enrollments.
type TransferService struct {
	enrollments transferEnrollmentRepository
	ledger      *LedgerService
	status      *StatusService
	tx          database.TxBeginner
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTransferService constructs the transfer service.
func NewTransferService(enrollments transferEnrollmentRepository, ledger *LedgerService, status *StatusService, tx database.TxBeginner, validate *validator.Validate, logger *zap.Logger) *TransferService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{enrollments: enrollments, ledger: ledger, status: status, tx: tx, validator: validate, logger: logger}
}

// Transfer moves amount (a whole multiple of the source fee) from source to target as two ADJUST
// entries, then re-evaluates both enrollments. Nothing is written when a check fails.
func (s *TransferService) Transfer(ctx context.Context, req dto.TransferFundsRequest, actorID string) (*dto.TransferResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}
	if req.SourceID == req.TargetID {
		return nil, appErrors.ErrSameEnrollment
	}
	if req.Amount <= 0 {
		return nil, appErrors.ErrInvalidAmount
	}

	today := s.status.Today()
	var result *dto.TransferResult
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		source, target, err := s.lockPair(ctx, tx, req.SourceID, req.TargetID)
		if err != nil {
			return err
		}

		fee := source.FeePerSession
		if fee <= 0 {
			return appErrors.ErrInvalidUnitPrice
		}
		remaining, err := s.ledger.RemainingAmount(ctx, tx, source)
		if err != nil {
			return err
		}
		if req.Amount > remaining {
			return appErrors.Clone(appErrors.ErrInsufficientBalance, fmt.Sprintf("amount %d exceeds remaining balance %d", req.Amount, remaining))
		}
		if req.Amount%fee != 0 {
			return appErrors.Clone(appErrors.ErrFractionalSessions, fmt.Sprintf("amount %d is not a multiple of the fee per session %d", req.Amount, fee))
		}
		sessions := req.Amount / fee
		if sessions <= 0 {
			return appErrors.ErrInvalidAmount
		}

		out := &models.BillingEntry{
			EnrollmentID: source.ID,
			EntryType:    models.BillingEntryAdjust,
			Sessions:     -sessions,
			UnitPrice:    fee,
			Amount:       -req.Amount,
			Note:         transferNote("Transfer %d to enrollment %s", req.Amount, target.ID, actorID, req.Note),
			CreatedBy:    actorRef(actorID),
		}
		in := &models.BillingEntry{
			EnrollmentID: target.ID,
			EntryType:    models.BillingEntryAdjust,
			Sessions:     sessions,
			UnitPrice:    fee,
			Amount:       req.Amount,
			Note:         transferNote("Transfer %d from enrollment %s", req.Amount, source.ID, actorID, req.Note),
			CreatedBy:    actorRef(actorID),
		}
		if err := s.ledger.AppendEntry(ctx, tx, out); err != nil {
			return err
		}
		if err := s.ledger.AppendEntry(ctx, tx, in); err != nil {
			return err
		}

		for _, e := range []*models.Enrollment{source, target} {
			if _, err := s.status.evaluate(ctx, tx, e, today, evalOptions{forceEndDate: true}); err != nil {
				return err
			}
		}

		sourceLeft, err := s.remainingAfter(ctx, tx, source)
		if err != nil {
			return err
		}
		targetLeft, err := s.remainingAfter(ctx, tx, target)
		if err != nil {
			return err
		}
		result = &dto.TransferResult{
			SourceID:        source.ID,
			TargetID:        target.ID,
			Sessions:        sessions,
			Amount:          req.Amount,
			SourceEntry:     *out,
			TargetEntry:     *in,
			SourceRemaining: sourceLeft,
			TargetRemaining: targetLeft,
		}
		return nil
	})
	if err != nil {
		if appErrors.IsValidation(err) {
			s.logger.Debug("transfer rejected", zap.String("source_id", req.SourceID), zap.String("target_id", req.TargetID), zap.Error(err))
		}
		return nil, wrapInternal(err, "failed to transfer funds")
	}

	s.ledger.InvalidateBalance(ctx, req.SourceID, req.TargetID)
	s.logger.Info("funds transferred",
		zap.String("source_id", result.SourceID),
		zap.String("target_id", result.TargetID),
		zap.Int64("sessions", result.Sessions),
		zap.Int64("amount", result.Amount),
		zap.String("actor_id", actorID),
	)
	return result, nil
}

// lockPair locks both enrollments in ascending id order.
func (s *TransferService) lockPair(ctx context.Context, exec sqlx.ExtContext, sourceID, targetID string) (*models.Enrollment, *models.Enrollment, error) {
	firstID, secondID := sourceID, targetID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	first, err := s.enrollments.FindByIDForUpdate(ctx, exec, firstID)
	if err != nil {
		return nil, nil, mapNotFound(err, "enrollment "+firstID+" not found", "failed to load enrollment")
	}
	second, err := s.enrollments.FindByIDForUpdate(ctx, exec, secondID)
	if err != nil {
		return nil, nil, mapNotFound(err, "enrollment "+secondID+" not found", "failed to load enrollment")
	}
	if first.ID == sourceID {
		return first, second, nil
	}
	return second, first, nil
}

func (s *TransferService) remainingAfter(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) (int64, error) {
	total, err := s.ledger.TotalSessionsPurchased(ctx, exec, e)
	if err != nil {
		return 0, err
	}
	return remainingSessions(total, e.SessionsConsumed), nil
}

func transferNote(format string, amount int64, counterparty, actorID, note string) string {
	if actorID == "" {
		actorID = "system"
	}
	text := fmt.Sprintf(format, amount, counterparty) + " by " + actorID
	if note != "" {
		text += ": " + note
	}
	return text
}

