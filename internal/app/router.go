package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/steam-center-api/api/swagger"
	"github.com/noah-isme/steam-center-api/internal/handler"
	"github.com/noah-isme/steam-center-api/internal/middleware"
	"github.com/noah-isme/steam-center-api/internal/models"
	"github.com/noah-isme/steam-center-api/pkg/config"
	"github.com/noah-isme/steam-center-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/steam-center-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/steam-center-api/pkg/middleware/requestid"
)

// NewRouter builds the gin engine with every billing and enrollment route. deps are pinged by
// the readiness check.
func NewRouter(cfg *config.Config, logr *zap.Logger, svcs *Services, deps map[string]handler.Pinger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(svcs.Metrics, "/metrics"))
	r.Use(middleware.WithResponseMeta())

	ops := handler.NewOpsHandler(svcs.Metrics.Handler(), deps)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	enrollmentHandler := handler.NewEnrollmentHandler(svcs.Enrollments, svcs.Status)
	billingHandler := handler.NewBillingHandler(svcs.Ledger, svcs.Purchases, svcs.Transfers, svcs.Statements)
	discountHandler := handler.NewDiscountHandler(svcs.Discounts)
	attendanceHandler := handler.NewAttendanceEventHandler(svcs.Dispatcher, svcs.Validator)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(svcs.Auth))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleCenterManager)
	readers := middleware.RequireRoles(models.RoleAdmin, models.RoleCenterManager, models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin)

	enrollments := api.Group("/enrollments")
	{
		enrollments.GET("", readers, enrollmentHandler.List)
		enrollments.POST("", staff, enrollmentHandler.Create)
		enrollments.POST("/sweep", admin, enrollmentHandler.Sweep)
		enrollments.GET("/:id", readers, enrollmentHandler.Get)
		enrollments.PATCH("/:id", staff, enrollmentHandler.Update)
		enrollments.PATCH("/:id/status", staff, enrollmentHandler.ChangeStatus)
		enrollments.POST("/:id/cancel", staff, enrollmentHandler.Cancel)
		enrollments.GET("/:id/status-logs", readers, enrollmentHandler.Logs)
		enrollments.POST("/:id/evaluate", staff, enrollmentHandler.Evaluate)

		enrollments.GET("/:id/billing/balance", readers, billingHandler.Balance)
		enrollments.GET("/:id/billing/entries", staff, billingHandler.History)
		enrollments.POST("/:id/billing/purchases", staff, billingHandler.Purchase)
		enrollments.GET("/:id/billing/statement", staff, billingHandler.Statement)
	}

	api.POST("/billing/transfers", staff, billingHandler.Transfer)

	discounts := api.Group("/discounts")
	{
		discounts.GET("", staff, discountHandler.List)
		discounts.GET("/:id", staff, discountHandler.Get)
		discounts.POST("", admin, discountHandler.Create)
		discounts.PUT("/:id", admin, discountHandler.Update)
		discounts.DELETE("/:id", admin, discountHandler.Delete)
	}

	api.POST("/attendance-events", readers, attendanceHandler.Publish)

	return r
}
