// Package recompute delivers "recompute this attendance or range" requests
// emitted by state changes back into the compliance pipeline.
package recompute

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
)

var ErrNotBound = errors.New("recompute dispatcher has no target")

// Inline re-enters the pipeline synchronously. Requests raised inside a
// guarded pass run one level deeper and fail once the depth limit is hit;
// requests raised outside any pass start a new top-level invocation.
type Inline struct {
	mu       sync.RWMutex
	target   compliance.Service
	maxDepth int
}

func NewInline(maxDepth int) *Inline {
	return &Inline{maxDepth: maxDepth}
}

// Bind sets the pipeline the dispatcher feeds. The pipeline depends on the
// dispatcher through the penalty manager, so binding happens after both
// are built.
func (d *Inline) Bind(target compliance.Service) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.target = target
}

// Dispatch implements compliance.Dispatcher.
func (d *Inline) Dispatch(ctx context.Context, req compliance.RecomputeRequest) error {
	d.mu.RLock()
	target := d.target
	d.mu.RUnlock()
	if target == nil {
		return ErrNotBound
	}

	if _, ok := compliance.GuardFrom(ctx); !ok {
		return target.Recompute(ctx, req)
	}

	nested, err := compliance.Nest(ctx, d.maxDepth)
	if err != nil {
		slog.Error("Recompute request dropped",
			"employee_id", req.EmployeeID,
			"attendance_id", req.AttendanceID,
			"reason", req.Reason,
			"error", err)
		return err
	}
	return target.Recompute(nested, req)
}
