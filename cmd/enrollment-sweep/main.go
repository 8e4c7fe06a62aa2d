// Command enrollment-sweep runs the enrollment status sweep once and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/steam-center-api/internal/app"
	"github.com/noah-isme/steam-center-api/pkg/cache"
	"github.com/noah-isme/steam-center-api/pkg/config"
	"github.com/noah-isme/steam-center-api/pkg/database"
	"github.com/noah-isme/steam-center-api/pkg/logger"
)

func main() {
	dateFlag := flag.String("date", "", "evaluate as of this date (YYYY-MM-DD), defaults to today")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, cached balances will not be invalidated", zap.Error(err))
		redisClient = nil
	}

	svcs := app.NewServices(cfg, db, redisClient, nil, logr)

	today := svcs.Status.Today()
	if *dateFlag != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, *dateFlag, cfg.Sweep.Location())
		if err != nil {
			log.Fatalf("invalid -date: %v", err)
		}
		today = parsed
	}

	result, err := svcs.Status.Sweep(context.Background(), today)
	if err != nil {
		logr.Fatal("status sweep failed", zap.Error(err))
	}
	fmt.Fprintf(os.Stdout, "Processed %d enrollments, updated %d\n", result.Processed, result.Updated)
	for _, failure := range result.Failures {
		fmt.Fprintf(os.Stderr, "failed %s: %s\n", failure.EnrollmentID, failure.Error)
	}
	if len(result.Failures) > 0 {
		os.Exit(1)
	}
}
