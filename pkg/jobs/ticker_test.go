package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []Job
	err  error
}

func (r *recordingEnqueuer) Enqueue(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return r.err
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func TestTickerFiresImmediately(t *testing.T) {
	rec := &recordingEnqueuer{}
	ticker := NewTicker("enrollment_status_sweep", time.Hour, rec, nil)
	fixed := time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	ticker.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ticker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	job := rec.jobs[0]
	assert.Equal(t, "enrollment_status_sweep", job.Type)
	assert.Equal(t, "enrollment_status_sweep-1772409900", job.ID)
	assert.Equal(t, fixed, job.Payload)
}

func TestTickerKeepsRunningWhenEnqueueFails(t *testing.T) {
	rec := &recordingEnqueuer{err: errors.New("queue stopped")}
	ticker := NewTicker("sweep", 10*time.Millisecond, rec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ticker.Run(ctx)

	require.Eventually(t, func() bool { return rec.count() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestNewTickerDefaultsInterval(t *testing.T) {
	ticker := NewTicker("sweep", 0, &recordingEnqueuer{}, nil)
	assert.Equal(t, 24*time.Hour, ticker.interval)
}
