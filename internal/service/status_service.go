package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/models"
	"github.com/noah-isme/steam-center-api/pkg/database"
	appErrors "github.com/noah-isme/steam-center-api/pkg/errors"
)

type statusEnrollmentRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	UpdateLifecycle(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	ListIDsByStatus(ctx context.Context, statuses []models.EnrollmentStatus) ([]string, error)
}

type statusLogRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, log *models.EnrollmentStatusLog) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.EnrollmentStatusLog, error)
}

type weekdayReader interface {
	Weekdays(ctx context.Context, exec sqlx.ExtContext, classID string) ([]int, error)
}

// transitions lists the manual status changes staff may perform.
var transitions = map[models.EnrollmentStatus]map[models.EnrollmentStatus]bool{
	models.EnrollmentStatusNew: {
		models.EnrollmentStatusActive:    true,
		models.EnrollmentStatusCancelled: true,
	},
	models.EnrollmentStatusActive: {
		models.EnrollmentStatusPaused:    true,
		models.EnrollmentStatusCompleted: true,
		models.EnrollmentStatusCancelled: true,
	},
	models.EnrollmentStatusPaused: {
		models.EnrollmentStatusActive:    true,
		models.EnrollmentStatusCancelled: true,
	},
}

// CanTransition reports whether a manual change from one status to another is allowed.
func CanTransition(from, to models.EnrollmentStatus) bool {
	return transitions[from][to]
}

// evalOptions tweaks a single state machine evaluation.
type evalOptions struct {
	forceEndDate bool
	// skipRecount is set when the caller recounted consumption under the same lock.
	skipRecount bool
}

// StatusService drives the enrollment status state machine.
type StatusService struct {
	enrollments statusEnrollmentRepository
	logs        statusLogRepository
	schedules   weekdayReader
	ledger      *LedgerService
	tx          database.TxBeginner
	validator   *validator.Validate
	metrics     *MetricsService
	logger      *zap.Logger
	location    *time.Location
	now         func() time.Time
}

// NewStatusService constructs the state machine service.
func NewStatusService(
	enrollments statusEnrollmentRepository,
	logs statusLogRepository,
	schedules weekdayReader,
	ledger *LedgerService,
	tx database.TxBeginner,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	location *time.Location,
) *StatusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &StatusService{
		enrollments: enrollments,
		logs:        logs,
		schedules:   schedules,
		ledger:      ledger,
		tx:          tx,
		validator:   validate,
		metrics:     metrics,
		logger:      logger,
		location:    location,
		now:         time.Now,
	}
}

// Today returns the current calendar date in the center's timezone.
func (s *StatusService) Today() time.Time {
	return models.DateOf(s.now().In(s.location))
}

// AutoUpdateStatus locks the enrollment and applies the automatic rules. It reports whether the
// status or end date changed.
func (s *StatusService) AutoUpdateStatus(ctx context.Context, enrollmentID string, today time.Time, forceRecalculateEndDate bool) (bool, error) {
	changed, err := s.autoUpdate(ctx, enrollmentID, today, forceRecalculateEndDate)
	if err != nil {
		return false, err
	}
	s.ledger.InvalidateBalance(ctx, enrollmentID)
	return changed, nil
}

func (s *StatusService) autoUpdate(ctx context.Context, enrollmentID string, today time.Time, forceRecalculateEndDate bool) (bool, error) {
	var changed bool
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		e, err := s.enrollments.FindByIDForUpdate(ctx, tx, enrollmentID)
		if err != nil {
			return mapNotFound(err, "enrollment not found", "failed to load enrollment")
		}
		changed, err = s.evaluate(ctx, tx, e, today, evalOptions{forceEndDate: forceRecalculateEndDate})
		return err
	})
	if err != nil {
		return false, wrapInternal(err, "failed to update enrollment status")
	}
	return changed, nil
}

// evaluate runs the rules in order on a locked enrollment:
//  1. no sessions left: CANCELLED (AUTO_END_OF_SESSIONS), end date defaults to today
//  2. end date before today: CANCELLED (AUTO_PAST_END_DATE)
//  3. end date re-projected from the start date, total sessions and class weekdays
//
// A cancelled enrollment skips the remaining rules. Terminal enrollments are left alone.
func (s *StatusService) evaluate(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment, today time.Time, opts evalOptions) (bool, error) {
	if e.Status.IsTerminal() {
		return false, nil
	}
	today = models.DateOf(today)

	total, err := s.ledger.TotalSessionsPurchased(ctx, exec, e)
	if err != nil {
		return false, err
	}
	if !opts.skipRecount {
		if _, _, err := s.ledger.RecalcSessionsConsumed(ctx, exec, e); err != nil {
			return false, err
		}
	}

	changed := false
	if remainingSessions(total, e.SessionsConsumed) <= 0 {
		if err := s.transition(ctx, exec, e, models.EnrollmentStatusCancelled, models.ReasonAutoEndOfSessions, "", ""); err != nil {
			return false, err
		}
		if e.EndDate == nil {
			end := today
			e.EndDate = &end
		}
		changed = true
	}

	if e.Status != models.EnrollmentStatusCancelled && e.EndDate != nil && models.DateOf(*e.EndDate).Before(today) {
		if err := s.transition(ctx, exec, e, models.EnrollmentStatusCancelled, models.ReasonAutoPastEndDate, "", ""); err != nil {
			return false, err
		}
		changed = true
	}

	if e.Status != models.EnrollmentStatusCancelled {
		weekdays, err := s.schedules.Weekdays(ctx, exec, e.ClassID)
		if err != nil {
			return false, err
		}
		projected := CalculateEndDate(e.StartDate, total, weekdays)
		switch {
		case projected != nil && (opts.forceEndDate || !sameDate(projected, e.EndDate)):
			if !sameDate(projected, e.EndDate) {
				changed = true
			}
			e.EndDate = projected
		case projected == nil && e.EndDate != nil && opts.forceEndDate:
			e.EndDate = nil
			changed = true
		}
	}

	if !changed {
		return false, nil
	}
	if err := s.enrollments.UpdateLifecycle(ctx, exec, e); err != nil {
		return false, err
	}
	return true, nil
}

// transition logs the change, then mutates the in-memory status. Same-status calls are no-ops.
func (s *StatusService) transition(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment, to models.EnrollmentStatus, reason, note, actorID string) error {
	if e.Status == to {
		return nil
	}
	log := &models.EnrollmentStatusLog{
		EnrollmentID: e.ID,
		OldStatus:    e.Status,
		NewStatus:    to,
		Reason:       reason,
		Note:         note,
		ActorID:      actorRef(actorID),
	}
	if err := s.logs.Create(ctx, exec, log); err != nil {
		return err
	}
	s.logger.Info("enrollment status changed",
		zap.String("enrollment_id", e.ID),
		zap.String("from", string(e.Status)),
		zap.String("to", string(to)),
		zap.String("reason", reason),
	)
	e.Status = to
	e.SyncActive()
	s.metrics.RecordStatusTransition(reason)
	return nil
}

// ChangeStatus applies a manual status change checked against the transition table.
func (s *StatusService) ChangeStatus(ctx context.Context, enrollmentID string, req dto.ChangeStatusRequest, actorID string) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status change payload")
	}
	reason := manualReason(req.Status)
	if req.Reason != "" && req.Reason != reason {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason "+req.Reason+" does not apply to status "+string(req.Status))
	}

	var updated *models.Enrollment
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		e, err := s.enrollments.FindByIDForUpdate(ctx, tx, enrollmentID)
		if err != nil {
			return mapNotFound(err, "enrollment not found", "failed to load enrollment")
		}
		if !CanTransition(e.Status, req.Status) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "cannot change status from "+string(e.Status)+" to "+string(req.Status))
		}
		if err := s.transition(ctx, tx, e, req.Status, reason, req.Note, actorID); err != nil {
			return err
		}
		if err := s.enrollments.UpdateLifecycle(ctx, tx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to change enrollment status")
	}
	s.ledger.InvalidateBalance(ctx, enrollmentID)
	return updated, nil
}

// manualReason is the only reason a staff change to status may carry.
func manualReason(status models.EnrollmentStatus) string {
	if status == models.EnrollmentStatusCancelled {
		return models.ReasonManualCancel
	}
	return models.ReasonManualChange
}

// Cancel cancels an enrollment regardless of its balance or dates.
func (s *StatusService) Cancel(ctx context.Context, enrollmentID, note, actorID string) (*models.Enrollment, error) {
	return s.ChangeStatus(ctx, enrollmentID, dto.ChangeStatusRequest{
		Status: models.EnrollmentStatusCancelled,
		Reason: models.ReasonManualCancel,
		Note:   note,
	}, actorID)
}

// Sweep evaluates every NEW, ACTIVE or PAUSED enrollment, one transaction each. A failing enrollment
// is recorded and skipped. Cached balances are dropped once at the end rather than per enrollment.
func (s *StatusService) Sweep(ctx context.Context, today time.Time) (dto.StatusSweepResult, error) {
	start := time.Now()
	var result dto.StatusSweepResult

	ids, err := s.enrollments.ListIDsByStatus(ctx, models.SweepStatuses)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments for sweep")
	}

	if len(ids) > 0 {
		defer s.ledger.InvalidateAllBalances(context.WithoutCancel(ctx))
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
		result.Processed++
		changed, err := s.autoUpdate(ctx, id, today, false)
		if err != nil {
			s.logger.Warn("status sweep failed for enrollment", zap.String("enrollment_id", id), zap.Error(err))
			result.Failures = append(result.Failures, dto.StatusSweepFailure{EnrollmentID: id, Error: err.Error()})
			continue
		}
		if changed {
			result.Updated++
		}
	}

	result.Duration = time.Since(start)
	s.metrics.ObserveSweep(result.Duration, len(result.Failures))
	s.logger.Info("status sweep finished",
		zap.Int("processed", result.Processed),
		zap.Int("updated", result.Updated),
		zap.Int("failed", len(result.Failures)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// Logs returns the status audit trail of an enrollment, newest first.
func (s *StatusService) Logs(ctx context.Context, enrollmentID string) ([]models.EnrollmentStatusLog, error) {
	if _, err := s.enrollments.FindByID(ctx, nil, enrollmentID); err != nil {
		return nil, mapNotFound(err, "enrollment not found", "failed to load enrollment")
	}
	logs, err := s.logs.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list status logs")
	}
	return logs, nil
}

// projectEndDate computes the end date an enrollment would get from its current balance.
func (s *StatusService) projectEndDate(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) (*time.Time, error) {
	total, err := s.ledger.TotalSessionsPurchased(ctx, exec, e)
	if err != nil {
		return nil, err
	}
	weekdays, err := s.schedules.Weekdays(ctx, exec, e.ClassID)
	if err != nil {
		return nil, err
	}
	return CalculateEndDate(e.StartDate, total, weekdays), nil
}
