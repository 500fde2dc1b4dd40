package notification

import (
	"context"
)

// Service fans approval workflow events out to the inbox, SSE streams and
// email. QueueNotification never blocks the request that raised the event.
type Service interface {
	QueueNotification(ctx context.Context, req CreateNotificationRequest) error

	GetNotifications(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) (*NotificationListResponse, error)
	GetUnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, userID string, req MarkAsReadRequest) error
	MarkAllAsRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string, notificationID string) error

	GetPreferences(ctx context.Context, userID string) ([]PreferenceResponse, error)
	UpdatePreference(ctx context.Context, userID string, req UpdatePreferenceRequest) error

	// Subscribe streams live events until ctx ends or the returned func runs.
	Subscribe(ctx context.Context, userID string) (<-chan SSEEvent, func())

	// Stop drains the queue and waits for the workers.
	Stop()
}
