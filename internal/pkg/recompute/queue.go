package recompute

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
)

var (
	ErrQueueFull    = errors.New("recompute queue is full")
	ErrQueueStopped = errors.New("recompute queue is stopped")
)

// QueueConfig holds the async queue settings.
type QueueConfig struct {
	QueueSize   int           // default: 256
	WorkerCount int           // default: 2
	Timeout     time.Duration // per request, default: 1 minute
}

// Queue runs recompute requests in the background, each as its own
// top-level pipeline invocation. It serves leave changes and the nightly
// job, where the caller does not wait for the result.
type Queue struct {
	target compliance.Service
	config QueueConfig

	// mu orders Dispatch against Stop so nothing is sent once intake closes.
	mu       sync.Mutex
	stopped  bool
	requests chan compliance.RecomputeRequest
	wg       sync.WaitGroup
}

func NewQueue(target compliance.Service, cfg QueueConfig) *Queue {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 256
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Minute
	}

	q := &Queue{
		target:   target,
		config:   cfg,
		requests: make(chan compliance.RecomputeRequest, cfg.QueueSize),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	slog.Info("Recompute queue started", "workers", cfg.WorkerCount, "queue_size", cfg.QueueSize)
	return q
}

// Dispatch implements compliance.Dispatcher. It never blocks, and fails
// with ErrQueueStopped once Stop has been called.
func (q *Queue) Dispatch(ctx context.Context, req compliance.RecomputeRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrQueueStopped
	}

	select {
	case q.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		slog.Warn("Recompute queue full", "employee_id", req.EmployeeID, "reason", req.Reason)
		return ErrQueueFull
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	// Runs until Stop closes the channel and everything queued is done.
	for req := range q.requests {
		q.run(id, req)
	}
}

func (q *Queue) run(worker int, req compliance.RecomputeRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), q.config.Timeout)
	defer cancel()

	start := time.Now()
	if err := q.target.Recompute(ctx, req); err != nil {
		slog.Error("Queued recompute failed",
			"worker", worker,
			"employee_id", req.EmployeeID,
			"attendance_id", req.AttendanceID,
			"reason", req.Reason,
			"error", err)
		return
	}
	slog.Info("Queued recompute completed",
		"worker", worker,
		"employee_id", req.EmployeeID,
		"reason", req.Reason,
		"duration", time.Since(start))
}

// Stop closes intake, then waits for the workers to drain what was queued.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.requests)
	}
	q.mu.Unlock()

	q.wg.Wait()
	slog.Info("Recompute queue stopped")
}
