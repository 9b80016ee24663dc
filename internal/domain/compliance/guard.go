package compliance

import (
	"context"
	"fmt"
)

type guardKey struct{}

// Guard tracks how deep the current call is inside a top-level pipeline
// invocation. Depth 0 is the top level.
type Guard struct {
	Depth int
}

// WithGuard marks ctx as a top-level invocation. An already guarded ctx is
// returned unchanged.
func WithGuard(ctx context.Context) context.Context {
	if _, ok := GuardFrom(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, guardKey{}, Guard{})
}

func GuardFrom(ctx context.Context) (Guard, bool) {
	g, ok := ctx.Value(guardKey{}).(Guard)
	return g, ok
}

// IsNested reports whether ctx belongs to a re-entered pass. Nested passes
// skip detection and penalty mutation.
func IsNested(ctx context.Context) bool {
	g, ok := GuardFrom(ctx)
	return ok && g.Depth > 0
}

// Nest returns a ctx one level deeper, failing once max is exceeded.
func Nest(ctx context.Context, max int) (context.Context, error) {
	g, _ := GuardFrom(ctx)
	depth := g.Depth + 1
	if depth > max {
		return ctx, fmt.Errorf("%w: depth %d, max %d", ErrReentrancyDepthExceeded, depth, max)
	}
	return context.WithValue(ctx, guardKey{}, Guard{Depth: depth}), nil
}
