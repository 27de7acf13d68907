package store

import (
	"context"
	"time"

	"vasilala/gateway"
	"vasilala/logger"
	"vasilala/model"
)

// NotificationStore holds the user's notification list. Items arrive
// from the gateway (persisted notifications and live pushes) or are
// created locally by UI helpers; items older than the retention window
// are dropped by a local sweep, not a durable TTL.
type NotificationStore struct {
	base   *Store[model.Notification]
	docs   gateway.DocumentStore
	userID string
}

// NewNotificationStore creates the notification store.
func NewNotificationStore(docs gateway.DocumentStore, pageSize int) *NotificationStore {
	n := &NotificationStore{docs: docs}
	n.base = New("notifications", func(x model.Notification) string { return x.ID }, n.fetchPage, pageSize)
	return n
}

func (n *NotificationStore) fetchPage(ctx context.Context, cursor string, pageSize int) ([]model.Notification, error) {
	docs, err := n.docs.Query(ctx, gateway.Query{
		Collection: gateway.CollectionNotifications,
		Filters: []gateway.Filter{
			{Field: "userId", Op: gateway.OpEqual, Value: n.userID},
		},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      pageSize,
		StartAfter: cursor,
	})
	if err != nil {
		return nil, err
	}

	items := make([]model.Notification, 0, len(docs))
	for _, doc := range docs {
		item, err := gateway.DecodeNotification(doc)
		if err != nil {
			logger.Warn("rejecting malformed notification document", logger.ErrorField(err))
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

// SetUser switches the acting user and clears the list.
func (n *NotificationStore) SetUser(userID string) {
	n.userID = userID
	n.base.Reset()
}

// Load fetches the first page of persisted notifications.
func (n *NotificationStore) Load(ctx context.Context) error {
	return n.base.Load(ctx)
}

// LoadMore fetches the next page.
func (n *NotificationStore) LoadMore(ctx context.Context) error {
	return n.base.LoadMore(ctx)
}

// Snapshot returns a copy of the notification state.
func (n *NotificationStore) Snapshot() Snapshot[model.Notification] {
	return n.base.Snapshot()
}

// UnreadCount returns the number of unread notifications.
func (n *NotificationStore) UnreadCount() int {
	return len(n.base.Filter(func(x model.Notification) bool { return !x.Read }))
}

// Subscribe registers a snapshot listener.
func (n *NotificationStore) Subscribe(fn func(Snapshot[model.Notification])) func() {
	return n.base.Subscribe(fn)
}

// Push adds a notification to the front of the list, e.g. one received
// over the live channel or created by a local helper.
func (n *NotificationStore) Push(item model.Notification) {
	n.base.Insert(item)
}

// Consume appends notifications from a live channel until it closes or
// the context is cancelled.
func (n *NotificationStore) Consume(ctx context.Context, ch <-chan model.Notification) {
	go func() {
		for {
			select {
			case item, ok := <-ch:
				if !ok {
					return
				}
				n.Push(item)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// MarkRead flags one notification as read, optimistically.
func (n *NotificationStore) MarkRead(ctx context.Context, id string) error {
	var wasRead bool
	return n.base.Optimistic(ctx, "markRead", Mutation[model.Notification]{
		ID: id,
		Apply: func(x *model.Notification) error {
			wasRead = x.Read
			x.Read = true
			return nil
		},
		Compensate: func(x *model.Notification) {
			x.Read = wasRead
		},
		Remote: func(ctx context.Context) error {
			return n.docs.Update(ctx, gateway.CollectionNotifications, id, gateway.Document{"read": true})
		},
	})
}

// Dismiss removes one notification locally and remotely.
func (n *NotificationStore) Dismiss(ctx context.Context, id string) error {
	if !n.base.Remove(id) {
		return ErrNotInSnapshot
	}
	if err := n.docs.Delete(ctx, gateway.CollectionNotifications, id); err != nil && err != gateway.ErrNotFound {
		// Local-only notifications have no remote document.
		logger.Warn("failed to delete notification", logger.String("id", id), logger.ErrorField(err))
	}
	return nil
}

// SweepExpired drops notifications older than the retention window and
// returns how many were removed.
func (n *NotificationStore) SweepExpired(now time.Time) int {
	return n.base.RemoveWhere(func(x model.Notification) bool { return x.Expired(now) })
}

// StartRetentionSweep runs SweepExpired on a ticker until the returned
// stop function is called.
func (n *NotificationStore) StartRetentionSweep(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if removed := n.SweepExpired(time.Now()); removed > 0 {
					logger.Debug("swept expired notifications", logger.Int("removed", removed))
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

// Wait blocks until in-flight remote writes settle.
func (n *NotificationStore) Wait() {
	n.base.Wait()
}
