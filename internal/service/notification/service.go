package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/notification"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/email"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/sse"
)

// Config sizes the background delivery. Zero values fall back to 100 per
// batch, a 5s flush, 2 workers and a queue of 1000.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	WorkerCount   int
	QueueSize     int
}

type service struct {
	repo   notification.Repository
	hub    *sse.Hub
	mailer email.EmailService
	config Config

	queue      chan notification.CreateNotificationRequest
	emailQueue chan notification.CreateNotificationRequest
	wg         sync.WaitGroup
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewNotificationService creates a new notification service with background
// workers. mailer may be nil, which disables the email channel.
func NewNotificationService(repo notification.Repository, hub *sse.Hub, mailer email.EmailService, cfg Config) notification.Service {
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
		repo:       repo,
		hub:        hub,
		mailer:     mailer,
		config:     cfg,
		queue:      make(chan notification.CreateNotificationRequest, cfg.QueueSize),
		emailQueue: make(chan notification.CreateNotificationRequest, cfg.QueueSize),
		stopCh:     make(chan struct{}),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	s.wg.Add(1)
	go s.emailWorker()

	slog.Info("notification service started",
		"workers", cfg.WorkerCount,
		"batch_size", cfg.BatchSize,
		"flush_interval", cfg.FlushInterval,
		"email", s.emailEnabled(),
	)

	return s
}

func newEntity(req notification.CreateNotificationRequest) *notification.Notification {
	return &notification.Notification{
		ID:          uuid.Must(uuid.NewV7()).String(),
		CompanyID:   req.CompanyID,
		RecipientID: req.RecipientID,
		SenderID:    req.SenderID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		Data:        req.Data,
		IsRead:      false,
		CreatedAt:   time.Now(),
	}
}

// persist stores a batch and pushes each stored notification to open streams.
// A failed insert is logged and the batch is dropped.
func (s *service) persist(worker int, batch []notification.CreateNotificationRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entities := make([]*notification.Notification, 0, len(batch))
	for _, req := range batch {
		entities = append(entities, newEntity(req))
	}
	if err := s.repo.CreateBatch(ctx, entities); err != nil {
		slog.Error("notification batch insert failed", "worker", worker, "count", len(entities), "error", err)
		return
	}
	slog.Debug("notifications inserted", "worker", worker, "count", len(entities))
	for _, n := range entities {
		s.publish(n)
	}
}

// worker collects queued notifications and writes them when the batch is full
// or the flush interval passes. On stop it drains the queue before returning.
func (s *service) worker(id int) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	pending := make([]notification.CreateNotificationRequest, 0, s.config.BatchSize)
	flush := func() {
		if len(pending) > 0 {
			s.persist(id, pending)
			pending = pending[:0]
		}
	}

	for {
		select {
		case req := <-s.queue:
			if pending = append(pending, req); len(pending) >= s.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stopCh:
			for {
				select {
				case req := <-s.queue:
					if pending = append(pending, req); len(pending) >= s.config.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *service) emailWorker() {
	defer s.wg.Done()
	for {
		select {
		case req := <-s.emailQueue:
			s.sendEmail(req)
		case <-s.stopCh:
			return
		}
	}
}

func (s *service) sendEmail(req notification.CreateNotificationRequest) {
	requestTitle, _ := req.Data["request_title"].(string)
	recipientName, _ := req.Data["recipient_name"].(string)
	err := s.mailer.SendNotification(email.NotificationMessage{
		To:            req.RecipientEmail,
		RecipientName: recipientName,
		Subject:       req.Title,
		Title:         req.Title,
		Message:       req.Message,
		RequestTitle:  requestTitle,
	})
	if err != nil {
		slog.Warn("notification email not delivered", "recipient_id", req.RecipientID, "type", req.Type, "error", err)
	}
}

func (s *service) emailEnabled() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

func (s *service) publish(n *notification.Notification) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(sse.Event{
		Recipient: n.RecipientID,
		Event:     "notification",
		Data:      toResponse(n),
	})
}

// QueueNotification validates req and hands it to the workers. The email copy
// follows the email preference and the in-app copy the push preference.
func (s *service) QueueNotification(ctx context.Context, req notification.CreateNotificationRequest) error {
	if req.RecipientID == "" {
		return notification.ErrInvalidRecipient
	}
	if !req.Type.Valid() {
		return notification.ErrInvalidNotificationType
	}

	s.queueEmail(ctx, req)

	enabled, err := s.repo.IsNotificationEnabled(ctx, req.RecipientID, req.Type)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}

	select {
	case s.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Workers are behind; write through rather than block the caller.
		return s.directInsert(ctx, req)
	}
}

func (s *service) queueEmail(ctx context.Context, req notification.CreateNotificationRequest) {
	if !s.emailEnabled() || req.RecipientEmail == "" {
		return
	}
	wanted, err := s.emailWanted(ctx, req)
	if err != nil {
		slog.Warn("failed to read email preference", "recipient_id", req.RecipientID, "error", err)
		return
	}
	if !wanted {
		return
	}
	select {
	case s.emailQueue <- req:
	default:
		slog.Warn("email queue full, dropping notification email", "recipient_id", req.RecipientID, "type", req.Type)
	}
}

func (s *service) emailWanted(ctx context.Context, req notification.CreateNotificationRequest) (bool, error) {
	pref, err := s.repo.GetPreference(ctx, req.RecipientID, req.Type)
	if err != nil {
		if errors.Is(err, notification.ErrPreferenceNotFound) {
			return true, nil
		}
		return false, err
	}
	return pref.EmailEnabled, nil
}

func (s *service) directInsert(ctx context.Context, req notification.CreateNotificationRequest) error {
	n := newEntity(req)
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	s.publish(n)
	return nil
}

func toResponse(n *notification.Notification) notification.NotificationResponse {
	return notification.NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

// GetNotifications returns one page of the user's inbox with the unread total.
func (s *service) GetNotifications(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	page = max(page, 1)
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	list, total, err := s.repo.GetByUserID(ctx, userID, page, pageSize, unreadOnly)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.GetUnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &notification.NotificationListResponse{
		Notifications: make([]notification.NotificationResponse, 0, len(list)),
		Total:         total,
		UnreadCount:   unread,
		Page:          page,
		PageSize:      pageSize,
	}
	for _, n := range list {
		out.Notifications = append(out.Notifications, toResponse(n))
	}
	return out, nil
}

func (s *service) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

func (s *service) MarkAsRead(ctx context.Context, userID string, req notification.MarkAsReadRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return s.repo.MarkAsRead(ctx, req.NotificationIDs, userID)
}

func (s *service) MarkAllAsRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// Delete removes one of the user's own notifications.
func (s *service) Delete(ctx context.Context, userID string, notificationID string) error {
	return s.repo.Delete(ctx, notificationID, userID)
}

// GetPreferences lists every notification type. Types the user never changed
// report both channels on.
func (s *service) GetPreferences(ctx context.Context, userID string) ([]notification.PreferenceResponse, error) {
	stored, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	byType := make(map[notification.NotificationType]notification.PreferenceResponse, len(stored))
	for _, p := range stored {
		byType[p.NotificationType] = notification.PreferenceResponse{
			NotificationType: p.NotificationType,
			EmailEnabled:     p.EmailEnabled,
			PushEnabled:      p.PushEnabled,
		}
	}

	out := make([]notification.PreferenceResponse, 0, len(notification.AllNotificationTypes()))
	for _, t := range notification.AllNotificationTypes() {
		pref, ok := byType[t]
		if !ok {
			pref = notification.PreferenceResponse{NotificationType: t, EmailEnabled: true, PushEnabled: true}
		}
		out = append(out, pref)
	}
	return out, nil
}

func (s *service) UpdatePreference(ctx context.Context, userID string, req notification.UpdatePreferenceRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	pref := &notification.NotificationPreference{
		UserID:           userID,
		NotificationType: req.NotificationType,
		EmailEnabled:     req.EmailEnabled,
		PushEnabled:      req.PushEnabled,
		UpdatedAt:        time.Now(),
	}

	return s.repo.UpsertPreference(ctx, pref)
}

// Subscribe forwards the user's hub events until ctx ends or the hub closes.
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
				resp, ok := event.Data.(notification.NotificationResponse)
				if !ok {
					continue
				}
				select {
				case out <- notification.SSEEvent{Event: event.Event, Data: resp}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, cleanup
}

// Stop flushes queued notifications and waits for the workers to exit.
func (s *service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		slog.Info("notification service stopped")
	})
}
