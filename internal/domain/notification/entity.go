package notification

import (
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	TypePenaltyActivated NotificationType = "penalty_activated"
)

// Notification represents a notification entity
type Notification struct {
	ID          string
	CompanyID   string
	RecipientID string
	Type        NotificationType
	Title       string
	Message     string
	Data        map[string]interface{}
	IsRead      bool
	CreatedAt   time.Time
}
