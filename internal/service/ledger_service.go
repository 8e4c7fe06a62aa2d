package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/models"
	"github.com/noah-isme/steam-center-api/pkg/cache"
	"github.com/noah-isme/steam-center-api/pkg/database"
	appErrors "github.com/noah-isme/steam-center-api/pkg/errors"
)

// AutoPurchaseNote labels the purchase entry written when an enrollment is registered.
const AutoPurchaseNote = "Auto from enrollment"

type ledgerEnrollmentRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	UpdateSessionsConsumed(ctx context.Context, exec sqlx.ExtContext, id string, consumed int64) error
}

type billingEntryRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.BillingEntry) error
	ExistsByType(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, entryType models.BillingEntryType) (bool, error)
	SumSessions(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (int64, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.BillingEntry, error)
}

type discountFinder interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Discount, error)
}

type attendanceCounter interface {
	CountAttended(ctx context.Context, exec sqlx.ExtContext, studentID, classID string) (int64, error)
}

type balanceCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Invalidate(ctx context.Context, pattern string) error
}

// LedgerConfig tunes the ledger read side.
type LedgerConfig struct {
	BalanceCacheTTL time.Duration
	Location        *time.Location
}

// LedgerService owns the billing ledger: purchase entries, consumption recounts and balance math.
type LedgerService struct {
	enrollments ledgerEnrollmentRepository
	entries     billingEntryRepository
	discounts   discountFinder
	attendance  attendanceCounter
	tx          database.TxBeginner
	cache       balanceCache
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         LedgerConfig
	now         func() time.Time
}

// NewLedgerService constructs the ledger service. cache and metrics may be nil.
func NewLedgerService(
	enrollments ledgerEnrollmentRepository,
	entries billingEntryRepository,
	discounts discountFinder,
	attendance attendanceCounter,
	tx database.TxBeginner,
	cache balanceCache,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg LedgerConfig,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &LedgerService{
		enrollments: enrollments,
		entries:     entries,
		discounts:   discounts,
		attendance:  attendance,
		tx:          tx,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (s *LedgerService) today() time.Time {
	return models.DateOf(s.now().In(s.cfg.Location))
}

// SessionsFromPayment converts a paid amount into whole sessions.
func SessionsFromPayment(amountPaid, feePerSession int64) int64 {
	if amountPaid <= 0 || feePerSession <= 0 {
		return 0
	}
	return amountPaid / feePerSession
}

func baseSessions(e *models.Enrollment) int64 {
	fromPayment := SessionsFromPayment(e.AmountPaid, e.FeePerSession)
	if e.SessionsPurchased > fromPayment {
		return e.SessionsPurchased
	}
	return fromPayment
}

func remainingSessions(total, consumed int64) int64 {
	if remaining := total - consumed; remaining > 0 {
		return remaining
	}
	return 0
}

// TotalSessionsPurchased is the base purchase plus every ledger session delta, floored at zero.
func (s *LedgerService) TotalSessionsPurchased(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) (int64, error) {
	sum, err := s.entries.SumSessions(ctx, exec, e.ID)
	if err != nil {
		return 0, err
	}
	total := baseSessions(e) + sum
	if total < 0 {
		return 0, nil
	}
	return total, nil
}

// RecalcSessionsConsumed recounts attended sessions for the enrollment and patches the cached
// counter when it changed. It returns the fresh count and the difference to the cached value.
// No ledger entry is written here.
func (s *LedgerService) RecalcSessionsConsumed(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) (consumed, delta int64, err error) {
	previous := e.SessionsConsumed
	consumed, err = s.attendance.CountAttended(ctx, exec, e.StudentID, e.ClassID)
	if err != nil {
		return 0, 0, err
	}
	if consumed != previous {
		if err := s.enrollments.UpdateSessionsConsumed(ctx, exec, e.ID, consumed); err != nil {
			return 0, 0, err
		}
		e.SessionsConsumed = consumed
	}
	return consumed, consumed - previous, nil
}

// SessionsRemaining recounts consumption and returns the unused sessions of the enrollment.
func (s *LedgerService) SessionsRemaining(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) (int64, error) {
	total, err := s.TotalSessionsPurchased(ctx, exec, e)
	if err != nil {
		return 0, err
	}
	if _, _, err := s.RecalcSessionsConsumed(ctx, exec, e); err != nil {
		return 0, err
	}
	return remainingSessions(total, e.SessionsConsumed), nil
}

// RemainingAmount is the monetary value of the unused sessions.
func (s *LedgerService) RemainingAmount(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) (int64, error) {
	remaining, err := s.SessionsRemaining(ctx, exec, e)
	if err != nil {
		return 0, err
	}
	return remaining * e.FeePerSession, nil
}

// ConsumptionEntry builds the ledger row for a consumption delta: CONSUME when sessions were used,
// ADJUST when an attendance correction gave them back. Sessions and amount carry the same sign.
func ConsumptionEntry(e *models.Enrollment, delta int64, sessionID string) *models.BillingEntry {
	if delta == 0 {
		return nil
	}
	entry := &models.BillingEntry{
		EnrollmentID: e.ID,
		Sessions:     -delta,
		UnitPrice:    e.FeePerSession,
		Amount:       -delta * e.FeePerSession,
	}
	if delta > 0 {
		entry.EntryType = models.BillingEntryConsume
		entry.Note = fmt.Sprintf("Consume by attendance session %s", sessionID)
	} else {
		entry.EntryType = models.BillingEntryAdjust
		entry.Note = fmt.Sprintf("Adjust by attendance change session %s", sessionID)
	}
	return entry
}

// AppendEntry writes a ledger entry on exec and counts it.
func (s *LedgerService) AppendEntry(ctx context.Context, exec sqlx.ExtContext, entry *models.BillingEntry) error {
	if err := s.entries.Create(ctx, exec, entry); err != nil {
		return err
	}
	s.metrics.RecordLedgerEntry(entry.EntryType)
	s.logger.Info("ledger entry written",
		zap.String("enrollment_id", entry.EnrollmentID),
		zap.String("type", string(entry.EntryType)),
		zap.Int64("sessions", entry.Sessions),
		zap.Int64("amount", entry.Amount),
	)
	return nil
}

// CreatePurchaseEntry writes the automatic PURCHASE entry for an enrollment's base purchase.
// It returns nil without writing when there is nothing to purchase, or when a PURCHASE entry
// already exists and force is false.
func (s *LedgerService) CreatePurchaseEntry(ctx context.Context, enrollmentID string, discountID *string, note string, force bool) (*models.BillingEntry, error) {
	var entry *models.BillingEntry
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		e, err := s.enrollments.FindByIDForUpdate(ctx, tx, enrollmentID)
		if err != nil {
			return mapNotFound(err, "enrollment not found", "failed to load enrollment")
		}
		discount, err := s.lookupDiscount(ctx, tx, discountID)
		if err != nil {
			return err
		}
		entry, err = s.createPurchaseEntryTx(ctx, tx, e, discount, note, force, "")
		return err
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to create purchase entry")
	}
	if entry != nil {
		s.InvalidateBalance(ctx, enrollmentID)
	}
	return entry, nil
}

func (s *LedgerService) createPurchaseEntryTx(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment, discount *models.Discount, note string, force bool, actorID string) (*models.BillingEntry, error) {
	sessions := baseSessions(e)
	if sessions <= 0 {
		return nil, nil
	}
	if !force {
		exists, err := s.entries.ExistsByType(ctx, exec, e.ID, models.BillingEntryPurchase)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, nil
		}
	}
	if note == "" {
		note = AutoPurchaseNote
	}
	entry := purchaseEntry(e.ID, discount, e.FeePerSession, sessions, note, actorID, s.today())
	if err := s.AppendEntry(ctx, exec, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func purchaseEntry(enrollmentID string, discount *models.Discount, unitPrice, sessions int64, note, actorID string, today time.Time) *models.BillingEntry {
	discountAmount, newUnitPrice := ApplyDiscount(discount, unitPrice, sessions, today)
	amount := newUnitPrice * sessions
	if amount < 0 {
		amount = 0
	}
	entry := &models.BillingEntry{
		EnrollmentID:   enrollmentID,
		EntryType:      models.BillingEntryPurchase,
		Sessions:       sessions,
		UnitPrice:      newUnitPrice,
		DiscountAmount: discountAmount,
		Amount:         amount,
		Note:           note,
		CreatedBy:      actorRef(actorID),
	}
	if discount != nil {
		id := discount.ID
		entry.DiscountID = &id
	}
	return entry
}

func (s *LedgerService) lookupDiscount(ctx context.Context, exec sqlx.ExtContext, discountID *string) (*models.Discount, error) {
	if discountID == nil || *discountID == "" {
		return nil, nil
	}
	discount, err := s.discounts.FindByID(ctx, exec, *discountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "discount not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discount")
	}
	return discount, nil
}

// Balance returns the balance summary of an enrollment from the cached consumption counter.
// The boolean reports whether the summary was served from cache.
func (s *LedgerService) Balance(ctx context.Context, enrollmentID string) (*dto.EnrollmentBalance, bool, error) {
	key := cache.BalanceKey(enrollmentID)
	if s.cache != nil {
		var cached dto.EnrollmentBalance
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	e, err := s.enrollments.FindByID(ctx, nil, enrollmentID)
	if err != nil {
		return nil, false, mapNotFound(err, "enrollment not found", "failed to load enrollment")
	}
	total, err := s.TotalSessionsPurchased(ctx, nil, e)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute balance")
	}
	remaining := remainingSessions(total, e.SessionsConsumed)
	balance := &dto.EnrollmentBalance{
		EnrollmentID:           e.ID,
		Status:                 e.Status,
		Active:                 e.Active,
		EndDate:                e.EndDate,
		FeePerSession:          e.FeePerSession,
		TotalSessionsPurchased: total,
		SessionsConsumed:       e.SessionsConsumed,
		SessionsRemaining:      remaining,
		RemainingAmount:        remaining * e.FeePerSession,
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, balance, s.cfg.BalanceCacheTTL)
	}
	return balance, false, nil
}

// History lists the ledger of an enrollment, newest first.
func (s *LedgerService) History(ctx context.Context, enrollmentID string) ([]models.BillingEntry, error) {
	if _, err := s.enrollments.FindByID(ctx, nil, enrollmentID); err != nil {
		return nil, mapNotFound(err, "enrollment not found", "failed to load enrollment")
	}
	entries, err := s.entries.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list billing entries")
	}
	return entries, nil
}

// InvalidateBalance drops cached balance summaries. Failures are logged by the cache layer.
func (s *LedgerService) InvalidateBalance(ctx context.Context, enrollmentIDs ...string) {
	if s.cache == nil || len(enrollmentIDs) == 0 {
		return
	}
	keys := make([]string, len(enrollmentIDs))
	for i, id := range enrollmentIDs {
		keys[i] = cache.BalanceKey(id)
	}
	_ = s.cache.Delete(ctx, keys...)
}

// InvalidateAllBalances drops every cached balance summary.
func (s *LedgerService) InvalidateAllBalances(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, cache.BalancePattern)
}
