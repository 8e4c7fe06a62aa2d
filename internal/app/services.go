// Package app assembles repositories and services shared by the binaries.
package app

import (
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/steam-center-api/internal/repository"
	"github.com/noah-isme/steam-center-api/internal/service"
	"github.com/noah-isme/steam-center-api/pkg/config"
	"github.com/noah-isme/steam-center-api/pkg/export"
	"github.com/noah-isme/steam-center-api/pkg/logger"
)

// Services holds the billing and enrollment service graph.
type Services struct {
	Metrics     *service.MetricsService
	Cache       *service.CacheService
	Auth        *service.AuthService
	Ledger      *service.LedgerService
	Status      *service.StatusService
	Enrollments *service.EnrollmentService
	Purchases   *service.PurchaseService
	Transfers   *service.TransferService
	Discounts   *service.DiscountService
	Statements  *service.StatementService
	Sync        *service.AttendanceSyncService
	Dispatcher  *service.AttendanceDispatcher
	Validator   *validator.Validate
}

// NewServices wires repositories on db and the optional redis client into services.
func NewServices(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, metrics *service.MetricsService, logr *zap.Logger) *Services {
	if metrics == nil {
		metrics = service.NewMetricsService()
	}
	validate := validator.New()
	location := cfg.Sweep.Location()

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	entryRepo := repository.NewBillingEntryRepository(db)
	discountRepo := repository.NewDiscountRepository(db)
	logRepo := repository.NewStatusLogRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	scheduleRepo := repository.NewClassScheduleRepository(db)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient), metrics, cfg.Billing.BalanceCacheTTL, logger.Component(logr, "cache"), cfg.Billing.CacheEnabled)
	}

	ledger := service.NewLedgerService(enrollmentRepo, entryRepo, discountRepo, attendanceRepo, db, cacheSvc, metrics,
		logger.Component(logr, "ledger"), service.LedgerConfig{BalanceCacheTTL: cfg.Billing.BalanceCacheTTL, Location: location})
	status := service.NewStatusService(enrollmentRepo, logRepo, scheduleRepo, ledger, db, validate, metrics,
		logger.Component(logr, "enrollment_status"), location)
	sync := service.NewAttendanceSyncService(enrollmentRepo, ledger, status, db, logger.Component(logr, "attendance_sync"))
	dispatcher := service.NewAttendanceDispatcher(logger.Component(logr, "attendance_dispatcher"))
	dispatcher.Register(sync)

	return &Services{
		Metrics:     metrics,
		Cache:       cacheSvc,
		Auth:        service.NewAuthService(service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Audience: cfg.JWT.Audience}),
		Ledger:      ledger,
		Status:      status,
		Enrollments: service.NewEnrollmentService(enrollmentRepo, ledger, status, db, validate, logger.Component(logr, "enrollment")),
		Purchases:   service.NewPurchaseService(enrollmentRepo, ledger, status, db, validate, logger.Component(logr, "purchase")),
		Transfers:   service.NewTransferService(enrollmentRepo, ledger, status, db, validate, logger.Component(logr, "transfer")),
		Discounts:   service.NewDiscountService(discountRepo, validate, logger.Component(logr, "discount")),
		Statements:  service.NewStatementService(enrollmentRepo, ledger, export.NewCSVExporter(), export.NewPDFExporter(), logger.Component(logr, "statement")),
		Sync:        sync,
		Dispatcher:  dispatcher,
		Validator:   validate,
	}
}
