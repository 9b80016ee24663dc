package recompute

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records every Recompute call with the guard it saw.
type fakeService struct {
	mu      sync.Mutex
	calls   []compliance.RecomputeRequest
	depths  []int
	guarded []bool
	onCall  func(ctx context.Context, req compliance.RecomputeRequest) error
}

func (f *fakeService) ProcessAttendance(context.Context, string) (compliance.BatchResult, error) {
	return compliance.BatchResult{}, nil
}

func (f *fakeService) RecomputeRange(context.Context, string, time.Time, time.Time) (compliance.BatchResult, error) {
	return compliance.BatchResult{}, nil
}

func (f *fakeService) HandleLeaveChange(context.Context, compliance.LeaveChange) (compliance.BatchResult, error) {
	return compliance.BatchResult{}, nil
}

func (f *fakeService) Recompute(ctx context.Context, req compliance.RecomputeRequest) error {
	g, ok := compliance.GuardFrom(ctx)
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.depths = append(f.depths, g.Depth)
	f.guarded = append(f.guarded, ok)
	onCall := f.onCall
	f.mu.Unlock()
	if onCall != nil {
		return onCall(ctx, req)
	}
	return nil
}

func (f *fakeService) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestInline_NestsGuardedRequests(t *testing.T) {
	svc := &fakeService{}
	d := NewInline(3)
	d.Bind(svc)

	ctx := compliance.WithGuard(context.Background())
	require.NoError(t, d.Dispatch(ctx, compliance.RecomputeRequest{EmployeeID: "emp-1", AttendanceID: "att-1"}))

	require.Len(t, svc.calls, 1)
	assert.True(t, svc.guarded[0])
	assert.Equal(t, 1, svc.depths[0])
}

func TestInline_UnguardedRequestStartsTopLevel(t *testing.T) {
	svc := &fakeService{}
	d := NewInline(3)
	d.Bind(svc)

	require.NoError(t, d.Dispatch(context.Background(), compliance.RecomputeRequest{EmployeeID: "emp-1"}))
	require.Len(t, svc.calls, 1)
	assert.False(t, svc.guarded[0])
}

func TestInline_StopsRunawayRecursion(t *testing.T) {
	svc := &fakeService{}
	d := NewInline(3)
	d.Bind(svc)
	// A target that ignores the guard and dispatches again on every call.
	svc.onCall = func(ctx context.Context, req compliance.RecomputeRequest) error {
		return d.Dispatch(ctx, req)
	}

	err := d.Dispatch(compliance.WithGuard(context.Background()), compliance.RecomputeRequest{EmployeeID: "emp-1"})
	require.ErrorIs(t, err, compliance.ErrReentrancyDepthExceeded)
	assert.Equal(t, []int{1, 2, 3}, svc.depths)
}

func TestInline_Unbound(t *testing.T) {
	err := NewInline(3).Dispatch(context.Background(), compliance.RecomputeRequest{})
	assert.ErrorIs(t, err, ErrNotBound)
}

func TestQueue_RunsRequestsAsTopLevel(t *testing.T) {
	svc := &fakeService{}
	q := NewQueue(svc, QueueConfig{QueueSize: 4, WorkerCount: 1})

	require.NoError(t, q.Dispatch(context.Background(), compliance.RecomputeRequest{EmployeeID: "emp-1", Reason: "leave_changed"}))
	require.NoError(t, q.Dispatch(context.Background(), compliance.RecomputeRequest{EmployeeID: "emp-2", Reason: "leave_changed"}))
	q.Stop()

	require.Equal(t, 2, svc.count())
	assert.Equal(t, []bool{false, false}, svc.guarded)
}

func TestQueue_FullQueueRejects(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	svc := &fakeService{onCall: func(context.Context, compliance.RecomputeRequest) error {
		started <- struct{}{}
		<-release
		return nil
	}}
	q := NewQueue(svc, QueueConfig{QueueSize: 1, WorkerCount: 1})

	require.NoError(t, q.Dispatch(context.Background(), compliance.RecomputeRequest{EmployeeID: "emp-1"}))
	<-started // the worker holds the first request
	require.NoError(t, q.Dispatch(context.Background(), compliance.RecomputeRequest{EmployeeID: "emp-2"}))

	err := q.Dispatch(context.Background(), compliance.RecomputeRequest{EmployeeID: "emp-3"})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	q.Stop()
	assert.Equal(t, 2, svc.count())
}

func TestQueue_StopDrainsThenRejects(t *testing.T) {
	svc := &fakeService{onCall: func(context.Context, compliance.RecomputeRequest) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}}
	q := NewQueue(svc, QueueConfig{QueueSize: 4, WorkerCount: 1})

	for _, id := range []string{"emp-1", "emp-2", "emp-3"} {
		require.NoError(t, q.Dispatch(context.Background(), compliance.RecomputeRequest{EmployeeID: id}))
	}
	q.Stop()
	assert.Equal(t, 3, svc.count(), "everything queued before Stop still runs")

	err := q.Dispatch(context.Background(), compliance.RecomputeRequest{EmployeeID: "emp-4"})
	assert.ErrorIs(t, err, ErrQueueStopped)
	assert.False(t, errors.Is(err, ErrQueueFull))
	assert.Equal(t, 3, svc.count())

	// A second Stop is harmless.
	q.Stop()
}
