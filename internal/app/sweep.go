package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/pkg/config"
	"github.com/noah-isme/steam-center-api/pkg/jobs"
)

// SweepJobType identifies the daily status sweep on the job queue.
const SweepJobType = "enrollment_status_sweep"

type statusSweeper interface {
	Today() time.Time
	Sweep(ctx context.Context, today time.Time) (dto.StatusSweepResult, error)
}

// NewSweepQueue returns a queue whose jobs run one status sweep each. Failed sweeps are not
// retried; the next tick picks up whatever was left.
func NewSweepQueue(sweeper statusSweeper, cfg config.SweepConfig, logr *zap.Logger) *jobs.Queue {
	handler := func(ctx context.Context, job jobs.Job) error {
		result, err := sweeper.Sweep(ctx, sweeper.Today())
		if err != nil {
			return err
		}
		logr.Info("status sweep finished",
			zap.String("job_id", job.ID),
			zap.Int("processed", result.Processed),
			zap.Int("updated", result.Updated),
			zap.Int("failures", len(result.Failures)),
		)
		return nil
	}
	return jobs.NewQueue(SweepJobType, handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: 1,
		MaxRetries: -1,
		Logger:     logr,
	})
}
