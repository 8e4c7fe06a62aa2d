package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/steam-center-api/internal/app"
	"github.com/noah-isme/steam-center-api/internal/handler"
	"github.com/noah-isme/steam-center-api/internal/service"
	"github.com/noah-isme/steam-center-api/pkg/cache"
	"github.com/noah-isme/steam-center-api/pkg/config"
	"github.com/noah-isme/steam-center-api/pkg/database"
	"github.com/noah-isme/steam-center-api/pkg/jobs"
	"github.com/noah-isme/steam-center-api/pkg/logger"
)

// @title STEAM Center API
// @version 1.0.0
// @description Enrollment billing ledger, session consumption and enrollment status lifecycle.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, balance cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	svcs := app.NewServices(cfg, db, redisClient, service.NewMetricsService(), logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sweepQueue *jobs.Queue
	if cfg.Sweep.Enabled {
		sweepLogger := logger.Component(logr, "status_sweep")
		sweepQueue = app.NewSweepQueue(svcs.Status, cfg.Sweep, sweepLogger)
		sweepQueue.Start(ctx)
		go jobs.NewTicker(app.SweepJobType, cfg.Sweep.Interval, sweepQueue, sweepLogger).Run(ctx)
	}

	deps := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.NewRouter(cfg, logr, svcs, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if sweepQueue != nil {
		sweepQueue.Stop()
	}
}
