package notification

import (
	"context"
)

// InboxRepository stores the per-user feed of request workflow events.
type InboxRepository interface {
	Create(ctx context.Context, notification *Notification) error
	// CreateBatch inserts a worker's flushed batch in one round trip.
	CreateBatch(ctx context.Context, notifications []*Notification) error
	GetByUserID(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) ([]*Notification, int, error)
	GetUnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, ids []string, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string, userID string) error
}

// PreferenceRepository stores which approval events a user opted out of.
// A missing row means the event is enabled on every channel.
type PreferenceRepository interface {
	GetPreferences(ctx context.Context, userID string) ([]*NotificationPreference, error)
	GetPreference(ctx context.Context, userID string, notifType NotificationType) (*NotificationPreference, error)
	UpsertPreference(ctx context.Context, pref *NotificationPreference) error
	IsNotificationEnabled(ctx context.Context, userID string, notifType NotificationType) (bool, error)
}

type Repository interface {
	InboxRepository
	PreferenceRepository
}
