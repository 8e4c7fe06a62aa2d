package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Enqueuer accepts jobs for asynchronous processing.
type Enqueuer interface {
	Enqueue(job Job) error
}

// Ticker enqueues a job of the given type on a fixed interval until its context ends.
type Ticker struct {
	jobType  string
	interval time.Duration
	queue    Enqueuer
	logger   *zap.Logger
	now      func() time.Time
}

// NewTicker constructs a periodic trigger. A non-positive interval defaults to 24h.
func NewTicker(jobType string, interval time.Duration, queue Enqueuer, logger *zap.Logger) *Ticker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ticker{jobType: jobType, interval: interval, queue: queue, logger: logger, now: time.Now}
}

// Run fires once immediately and then on every tick. It blocks until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	t.fire()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire()
		}
	}
}

func (t *Ticker) fire() {
	at := t.now().UTC()
	job := Job{ID: fmt.Sprintf("%s-%d", t.jobType, at.Unix()), Type: t.jobType, Payload: at, Enqueued: at}
	if err := t.queue.Enqueue(job); err != nil {
		t.logger.Warn("schedule job", zap.String("type", t.jobType), zap.Error(err))
	}
}
