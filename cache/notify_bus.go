package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"vasilala/logger"
	"vasilala/model"

	"github.com/redis/go-redis/v9"
)

// NotificationBus fans notifications out over Redis pub/sub. The gateway
// daemon publishes on the owning user's channel; connected clients and
// the notification store subscribe.
type NotificationBus struct {
	client *redis.Client
}

// NewNotificationBus creates a bus over the given Redis client.
func NewNotificationBus(client *redis.Client) *NotificationBus {
	return &NotificationBus{client: client}
}

// notifyChannel builds the pub/sub channel name for a user.
func notifyChannel(userID string) string {
	return fmt.Sprintf("notify:%s", userID)
}

// Publish pushes a notification to a user's channel.
func (b *NotificationBus) Publish(ctx context.Context, userID string, n model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := b.client.Publish(ctx, notifyChannel(userID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Subscribe streams a user's notifications until the returned stop
// function is called or the context is cancelled.
func (b *NotificationBus) Subscribe(ctx context.Context, userID string) (<-chan model.Notification, func()) {
	pubsub := b.client.Subscribe(ctx, notifyChannel(userID))
	out := make(chan model.Notification, 16)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var n model.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				logger.Warn("dropping malformed notification payload",
					logger.String("userId", userID),
					logger.ErrorField(err))
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() {
		if err := pubsub.Close(); err != nil {
			logger.Warn("failed to close notification subscription", logger.ErrorField(err))
		}
	}
}
