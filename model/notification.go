package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies a notification.
type NotificationType string

const (
	NotifyLike    NotificationType = "like"
	NotifyComment NotificationType = "comment"
	NotifyFollow  NotificationType = "follow"
	NotifyEvent   NotificationType = "event"
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
)

// NotificationRetention is how long a notification is kept before the
// local retention sweep drops it.
const NotificationRetention = 30 * 24 * time.Hour

// Notification is a single item in a user's notification list. Created
// locally by helpers or pushed from the gateway.
type Notification struct {
	ID         string           `json:"id"`
	UserID     string           `json:"userId,omitempty"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Body       string           `json:"body,omitempty"`
	Read       bool             `json:"read"`
	ActionLink string           `json:"actionLink,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// NewNotification builds a local notification with a fresh id.
func NewNotification(typ NotificationType, title, body string) Notification {
	return Notification{
		ID:        uuid.New().String(),
		Type:      typ,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now(),
	}
}

// Expired reports whether the notification has aged past the retention
// window at the given instant.
func (n Notification) Expired(now time.Time) bool {
	return now.Sub(n.CreatedAt) > NotificationRetention
}
