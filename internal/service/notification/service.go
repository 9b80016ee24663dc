package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/google/uuid"
)

// Config holds notification service configuration
type Config struct {
	BatchSize     int           // default: 100
	FlushInterval time.Duration // default: 5 seconds
	WorkerCount   int           // default: 2
	QueueSize     int           // default: 1000
}

type service struct {
	repo         notification.Repository
	employeeRepo employee.EmployeeRepository
	penaltyRepo  leave.PenaltyRepository
	hub          *sse.Hub
	config       Config

	queue   chan notification.CreateNotificationRequest
	notices chan leave.PenaltyLeave
	wg      sync.WaitGroup
	stopCh  chan struct{}

	noticeWg   sync.WaitGroup
	noticeStop chan struct{}
}

// NewNotificationService creates a new notification service with background workers
func NewNotificationService(
	repo notification.Repository,
	employeeRepo employee.EmployeeRepository,
	penaltyRepo leave.PenaltyRepository,
	hub *sse.Hub,
	cfg Config,
) notification.Service {
	// Set defaults
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1000
	}

	s := &service{
		repo:         repo,
		employeeRepo: employeeRepo,
		penaltyRepo:  penaltyRepo,
		hub:          hub,
		config:       cfg,
		queue:        make(chan notification.CreateNotificationRequest, cfg.QueueSize),
		notices:      make(chan leave.PenaltyLeave, cfg.QueueSize),
		stopCh:       make(chan struct{}),
		noticeStop:   make(chan struct{}),
	}

	// Start background workers
	for i := 0; i < cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	s.noticeWg.Add(1)
	go s.noticeWorker()

	slog.Info("Notification service started",
		"workers", cfg.WorkerCount,
		"batch_size", cfg.BatchSize,
		"flush_interval", cfg.FlushInterval)

	return s
}

// PenaltyActivated implements notification.Hook. It only enqueues, so a
// slow mailbox never holds up the pipeline that committed the penalty.
func (s *service) PenaltyActivated(_ context.Context, penalty leave.PenaltyLeave) {
	select {
	case s.notices <- penalty:
	default:
		slog.Error("Penalty notice dropped",
			"penalty_id", penalty.ID,
			"employee_id", penalty.EmployeeID,
			"error", notification.ErrQueueFull)
	}
}

// noticeWorker turns penalty notices into one notification per company
// administrator and records that the warning went out.
func (s *service) noticeWorker() {
	defer s.noticeWg.Done()

	for {
		select {
		case p := <-s.notices:
			s.notify(p)
		case <-s.noticeStop:
			for {
				select {
				case p := <-s.notices:
					s.notify(p)
				default:
					return
				}
			}
		}
	}
}

func (s *service) notify(p leave.PenaltyLeave) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recipients, err := s.employeeRepo.ListAdministratorUserIDs(ctx, p.CompanyID)
	if err != nil {
		slog.Error("Failed to resolve penalty recipients", "penalty_id", p.ID, "error", err)
		return
	}
	if len(recipients) == 0 {
		slog.Warn("No administrator to notify", "penalty_id", p.ID, "company_id", p.CompanyID)
		return
	}

	title, message := penaltyText(p)
	for _, recipient := range recipients {
		err := s.QueueNotification(ctx, notification.CreateNotificationRequest{
			CompanyID:   p.CompanyID,
			RecipientID: recipient,
			Type:        notification.TypePenaltyActivated,
			Title:       title,
			Message:     message,
			Data: map[string]interface{}{
				"penalty_id":      p.ID,
				"employee_id":     p.EmployeeID,
				"attendance_id":   p.TriggerAttendanceID,
				"date":            p.Date.Format("2006-01-02"),
				"portion":         p.Portion,
				"infraction_type": p.InfractionType,
			},
		})
		if err != nil {
			slog.Error("Failed to queue penalty notification", "penalty_id", p.ID, "recipient_id", recipient, "error", err)
		}
	}

	current, err := s.penaltyRepo.GetByID(ctx, p.ID)
	if err != nil {
		slog.Warn("Penalty gone before warning was recorded", "penalty_id", p.ID, "error", err)
		return
	}
	flags := current.Flags
	flags.WarnSent = true
	if err := s.penaltyRepo.UpdateNotificationFlags(ctx, p.ID, flags); err != nil {
		slog.Error("Failed to record penalty warning", "penalty_id", p.ID, "error", err)
	}
}

func penaltyText(p leave.PenaltyLeave) (string, string) {
	title := "Attendance penalty"
	switch p.Portion {
	case leave.PortionFull:
		title = "Full-day attendance penalty"
	case leave.PortionAM:
		title = "Morning attendance penalty"
	case leave.PortionPM:
		title = "Afternoon attendance penalty"
	}
	message := fmt.Sprintf("%s on %s: %s", p.InfractionType, p.Date.Format("2006-01-02"), p.Description)
	return title, message
}

// worker is the background worker that processes notification queue
func (s *service) worker(id int) {
	defer s.wg.Done()

	batch := make([]notification.CreateNotificationRequest, 0, s.config.BatchSize)
	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Convert to entities
		notifications := make([]*notification.Notification, len(batch))
		for i, req := range batch {
			notifications[i] = newNotification(req)
		}

		// Batch insert
		if err := s.repo.CreateBatch(ctx, notifications); err != nil {
			slog.Error("Failed to batch insert notifications", "worker", id, "error", err)
		} else {
			slog.Debug("Notifications inserted", "worker", id, "count", len(notifications))
			s.publish(notifications...)
		}

		batch = batch[:0]
	}

	for {
		select {
		case req := <-s.queue:
			batch = append(batch, req)
			if len(batch) >= s.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stopCh:
			for {
				select {
				case req := <-s.queue:
					batch = append(batch, req)
				default:
					flush()
					return
				}
			}
		}
	}
}

// QueueNotification queues a notification for async processing
func (s *service) QueueNotification(ctx context.Context, req notification.CreateNotificationRequest) error {
	select {
	case s.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Queue full, try direct insert
		return s.directInsert(ctx, req)
	}
}

// directInsert inserts a notification directly when queue is full
func (s *service) directInsert(ctx context.Context, req notification.CreateNotificationRequest) error {
	n := newNotification(req)
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	s.publish(n)
	return nil
}

func (s *service) publish(notifications ...*notification.Notification) {
	for _, n := range notifications {
		s.hub.Publish(sse.Event{
			RecipientID: n.RecipientID,
			Event:       string(n.Type),
			Data:        toResponse(n),
		})
	}
}

func newNotification(req notification.CreateNotificationRequest) *notification.Notification {
	return &notification.Notification{
		ID:          uuid.Must(uuid.NewV7()).String(),
		CompanyID:   req.CompanyID,
		RecipientID: req.RecipientID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		Data:        req.Data,
		IsRead:      false,
		CreatedAt:   time.Now(),
	}
}

// toResponse converts a Notification entity to NotificationResponse
func toResponse(n *notification.Notification) notification.NotificationResponse {
	return notification.NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// Subscribe creates an SSE subscription for a user
func (s *service) Subscribe(ctx context.Context, userID string) (<-chan notification.SSEEvent, func()) {
	ch, cleanup := s.hub.Subscribe(userID)

	out := make(chan notification.SSEEvent, 10)

	go func() {
		defer close(out)
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				if resp, ok := event.Data.(notification.NotificationResponse); ok {
					select {
					case out <- notification.SSEEvent{Event: event.Event, Data: resp}:
					case <-ctx.Done():
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, cleanup
}

// Stop gracefully stops the notification service. Pending penalty notices
// are expanded first so their notifications reach the batch workers.
func (s *service) Stop() {
	close(s.noticeStop)
	s.noticeWg.Wait()
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("Notification service stopped")
}
