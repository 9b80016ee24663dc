package memory

import (
	"context"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
)

type notificationRepository struct {
	store *Store
}

func NewNotificationRepository(store *Store) notification.Repository {
	return &notificationRepository{store: store}
}

// Create implements notification.Repository.
func (r *notificationRepository) Create(_ context.Context, n *notification.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if n.ID == "" {
		n.ID = newID()
	}
	r.store.notifications = append(r.store.notifications, n)
	return nil
}

// CreateBatch implements notification.Repository.
func (r *notificationRepository) CreateBatch(_ context.Context, notifications []*notification.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, n := range notifications {
		if n.ID == "" {
			n.ID = newID()
		}
		r.store.notifications = append(r.store.notifications, n)
	}
	return nil
}
