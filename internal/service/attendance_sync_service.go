package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/models"
	"github.com/noah-isme/steam-center-api/pkg/database"
	appErrors "github.com/noah-isme/steam-center-api/pkg/errors"
)

// AttendanceListener reacts to attendance status changes.
type AttendanceListener interface {
	AttendanceStatusChanged(ctx context.Context, event models.AttendanceStatusChanged) error
}

// AttendanceDispatcher fans attendance events out to registered listeners in registration order.
type AttendanceDispatcher struct {
	mu        sync.RWMutex
	listeners []AttendanceListener
	logger    *zap.Logger
}

// NewAttendanceDispatcher constructs an empty dispatcher.
func NewAttendanceDispatcher(logger *zap.Logger) *AttendanceDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceDispatcher{logger: logger}
}

// Register adds a listener.
func (d *AttendanceDispatcher) Register(listener AttendanceListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, listener)
}

// Publish delivers the event to every listener. A failing listener does not stop the others; all
// failures are returned joined.
func (d *AttendanceDispatcher) Publish(ctx context.Context, event models.AttendanceStatusChanged) error {
	d.mu.RLock()
	listeners := append([]AttendanceListener(nil), d.listeners...)
	d.mu.RUnlock()

	var errs []error
	for _, l := range listeners {
		if err := l.AttendanceStatusChanged(ctx, event); err != nil {
			d.logger.Warn("attendance listener failed", zap.String("attendance_id", event.AttendanceID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

type syncEnrollmentRepository interface {
	FindLatestForUpdate(ctx context.Context, exec sqlx.ExtContext, studentID, classID string) (*models.Enrollment, error)
}

// AttendanceSyncService keeps enrollment consumption, the ledger and status in step with attendance.
type AttendanceSyncService struct {
	enrollments syncEnrollmentRepository
	ledger      *LedgerService
	status      *StatusService
	tx          database.TxBeginner
	logger      *zap.Logger
}

// NewAttendanceSyncService constructs the reconciliation listener.
func NewAttendanceSyncService(enrollments syncEnrollmentRepository, ledger *LedgerService, status *StatusService, tx database.TxBeginner, logger *zap.Logger) *AttendanceSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceSyncService{enrollments: enrollments, ledger: ledger, status: status, tx: tx, logger: logger}
}

// AttendanceStatusChanged implements AttendanceListener.
func (s *AttendanceSyncService) AttendanceStatusChanged(ctx context.Context, event models.AttendanceStatusChanged) error {
	_, err := s.Reconcile(ctx, event)
	return err
}

// Reconcile recounts consumption when the event crosses the attended boundary, writes one
// CONSUME or ADJUST entry for a non-zero delta and re-evaluates the enrollment status.
func (s *AttendanceSyncService) Reconcile(ctx context.Context, event models.AttendanceStatusChanged) (*dto.AttendanceEventResult, error) {
	result := &dto.AttendanceEventResult{}
	if !event.CrossesAttendedBoundary() {
		return result, nil
	}

	today := s.status.Today()
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		e, err := s.enrollments.FindLatestForUpdate(ctx, tx, event.StudentID, event.ClassID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		result.Reconciled = true
		result.EnrollmentID = e.ID

		_, delta, err := s.ledger.RecalcSessionsConsumed(ctx, tx, e)
		if err != nil {
			return err
		}
		result.Delta = delta
		if entry := ConsumptionEntry(e, delta, event.SessionID); entry != nil {
			if err := s.ledger.AppendEntry(ctx, tx, entry); err != nil {
				return err
			}
			entryType := entry.EntryType
			result.EntryType = &entryType
		}

		changed, err := s.status.evaluate(ctx, tx, e, today, evalOptions{skipRecount: true})
		if err != nil {
			return err
		}
		result.StatusChanged = changed
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reconcile attendance")
	}
	if !result.Reconciled {
		s.logger.Debug("no enrollment for attendance", zap.String("student_id", event.StudentID), zap.String("class_id", event.ClassID))
		return result, nil
	}
	s.ledger.InvalidateBalance(ctx, result.EnrollmentID)
	return result, nil
}
