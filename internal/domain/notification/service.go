package notification

import (
	"context"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
)

// Hook is told when a penalty becomes active for the first time. It is
// fire-and-forget: failures are logged and never reach the caller.
type Hook interface {
	PenaltyActivated(ctx context.Context, penalty leave.PenaltyLeave)
}

// Service defines the notification service interface
type Service interface {
	Hook

	// Queue notification (async processing via background workers)
	QueueNotification(ctx context.Context, req CreateNotificationRequest) error

	// SSE subscription
	Subscribe(ctx context.Context, userID string) (<-chan SSEEvent, func())

	// Lifecycle
	Stop()
}
