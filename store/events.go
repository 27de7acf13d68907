package store

import (
	"context"
	"time"

	"vasilala/gateway"
	"vasilala/logger"
	"vasilala/model"
)

// EventStore holds the events marketplace snapshot.
type EventStore struct {
	base   *Store[model.Event]
	docs   gateway.DocumentStore
	userID string
}

// NewEventStore creates the events store.
func NewEventStore(docs gateway.DocumentStore, pageSize int) *EventStore {
	e := &EventStore{docs: docs}
	e.base = New("events", func(ev model.Event) string { return ev.ID }, e.fetchPage, pageSize).
		WithClone(model.Event.Clone)
	return e
}

func (e *EventStore) fetchPage(ctx context.Context, cursor string, pageSize int) ([]model.Event, error) {
	docs, err := e.docs.Query(ctx, gateway.Query{
		Collection: gateway.CollectionEvents,
		OrderBy:    "startsAt",
		Limit:      pageSize,
		StartAfter: cursor,
	})
	if err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(docs))
	for _, doc := range docs {
		ev, err := gateway.DecodeEvent(doc)
		if err != nil {
			logger.Warn("rejecting malformed event document", logger.ErrorField(err))
			continue
		}
		events = append(events, *ev)
	}
	return events, nil
}

// SetUser switches the acting user and clears per-user snapshot state.
func (e *EventStore) SetUser(userID string) {
	e.userID = userID
	e.base.Reset()
}

// Load fetches the first page of upcoming events.
func (e *EventStore) Load(ctx context.Context) error {
	return e.base.Load(ctx)
}

// LoadMore fetches the next page.
func (e *EventStore) LoadMore(ctx context.Context) error {
	return e.base.LoadMore(ctx)
}

// Snapshot returns a copy of the events state.
func (e *EventStore) Snapshot() Snapshot[model.Event] {
	return e.base.Snapshot()
}

// Event returns a loaded event by id.
func (e *EventStore) Event(id string) (model.Event, bool) {
	return e.base.Get(id)
}

// InCity returns loaded events in a city.
func (e *EventStore) InCity(city string) []model.Event {
	return e.base.Filter(func(ev model.Event) bool { return ev.Venue.City == city })
}

// Upcoming returns loaded events that have not ended yet.
func (e *EventStore) Upcoming(now time.Time) []model.Event {
	return e.base.Filter(func(ev model.Event) bool { return ev.EndsAt.After(now) })
}

// Subscribe registers a snapshot listener.
func (e *EventStore) Subscribe(fn func(Snapshot[model.Event])) func() {
	return e.base.Subscribe(fn)
}

// ToggleInterest flips the interested flag and counter, rolling back on
// a failed remote write.
func (e *EventStore) ToggleInterest(ctx context.Context, eventID string) error {
	var wasInterested bool
	return e.base.Optimistic(ctx, "toggleInterest", Mutation[model.Event]{
		ID: eventID,
		Apply: func(ev *model.Event) error {
			wasInterested = ev.IsInterested
			ToggleCounter(&ev.IsInterested, &ev.Interested)
			return nil
		},
		Compensate: func(ev *model.Event) {
			ToggleCounter(&ev.IsInterested, &ev.Interested)
		},
		Remote: func(ctx context.Context) error {
			delta := int64(1)
			if wasInterested {
				delta = -1
			}
			if err := e.docs.Increment(ctx, gateway.CollectionEvents, eventID, "interested", delta); err != nil {
				return err
			}
			if e.userID == "" {
				return nil
			}
			if wasInterested {
				return e.docs.ArrayRemove(ctx, gateway.CollectionEvents, eventID, "interestedBy", e.userID)
			}
			return e.docs.ArrayUnion(ctx, gateway.CollectionEvents, eventID, "interestedBy", e.userID)
		},
	})
}

// RegisterView bumps the view counter.
func (e *EventStore) RegisterView(ctx context.Context, eventID string) error {
	return e.base.Optimistic(ctx, "registerView", Mutation[model.Event]{
		ID: eventID,
		Apply: func(ev *model.Event) error {
			ev.Views++
			return nil
		},
		Compensate: func(ev *model.Event) {
			ev.Views--
			if ev.Views < 0 {
				ev.Views = 0
			}
		},
		Remote: func(ctx context.Context) error {
			return e.docs.Increment(ctx, gateway.CollectionEvents, eventID, "views", 1)
		},
	})
}

// PurchaseTickets reserves count tickets from a tier. The availability
// check, the reservation and the encoding of the tier state to write
// happen in one critical section, so concurrent purchases serialize and
// a rejected request produces no state change, local or remote. On a
// failed remote write the reservation is released.
func (e *EventStore) PurchaseTickets(ctx context.Context, eventID, tierID string, count int) error {
	var tiersDoc []gateway.Document
	return e.base.Optimistic(ctx, "purchaseTickets", Mutation[model.Event]{
		ID: eventID,
		Apply: func(ev *model.Event) error {
			t := ev.Tier(tierID)
			if t == nil {
				return ErrNotInSnapshot
			}
			if err := t.Purchase(count); err != nil {
				return err
			}
			ev.Attending += int64(count)
			tiersDoc = encodeTiers(ev.Tiers)
			return nil
		},
		Compensate: func(ev *model.Event) {
			if t := ev.Tier(tierID); t != nil {
				t.Sold -= count
				if t.Sold < 0 {
					t.Sold = 0
				}
				t.Available = t.Quantity - t.Sold
			}
			ev.Attending -= int64(count)
			if ev.Attending < 0 {
				ev.Attending = 0
			}
		},
		Remote: func(ctx context.Context) error {
			if err := e.docs.Update(ctx, gateway.CollectionEvents, eventID, gateway.Document{
				"tiers": tiersDoc,
			}); err != nil {
				return err
			}
			return e.docs.Increment(ctx, gateway.CollectionEvents, eventID, "attending", int64(count))
		},
	})
}

func encodeTiers(tiers []model.TicketTier) []gateway.Document {
	out := make([]gateway.Document, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, gateway.Document{
			"id":       t.ID,
			"name":     t.Name,
			"price":    t.Price,
			"currency": t.Currency,
			"quantity": int64(t.Quantity),
			"sold":     int64(t.Sold),
		})
	}
	return out
}

// Wait blocks until in-flight remote writes settle.
func (e *EventStore) Wait() {
	e.base.Wait()
}
