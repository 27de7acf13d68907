package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vasilala/gateway"
	"vasilala/model"
)

func seedEvent(docs *fakeDocs, id string, quantity, sold int) {
	docs.seed(gateway.CollectionEvents, gateway.Document{
		"id":          id,
		"organizerId": "org-1",
		"title":       "Open Air",
		"venue":       map[string]any{"name": "Warehouse", "city": "Berlin"},
		"startsAt":    "2026-09-01T20:00:00Z",
		"endsAt":      "2026-09-02T04:00:00Z",
		"tiers": []any{
			map[string]any{
				"id": "ga", "name": "General", "price": 25.0,
				"currency": "EUR", "quantity": float64(quantity), "sold": float64(sold),
			},
		},
		"views":      float64(0),
		"interested": float64(0),
		"attending":  float64(0),
		"createdAt":  "2026-08-01T12:00:00Z",
	})
}

func TestEventLoadRecomputesAvailability(t *testing.T) {
	docs := newFakeDocs()
	seedEvent(docs, "e1", 100, 30)

	events := NewEventStore(docs, 20)
	require.NoError(t, events.Load(context.Background()))

	ev, ok := events.Event("e1")
	require.True(t, ok)
	require.Len(t, ev.Tiers, 1)
	assert.Equal(t, 70, ev.Tiers[0].Available)
}

func TestPurchaseTickets(t *testing.T) {
	docs := newFakeDocs()
	seedEvent(docs, "e1", 10, 8)

	events := NewEventStore(docs, 20)
	events.SetUser("user-1")
	require.NoError(t, events.Load(context.Background()))

	require.NoError(t, events.PurchaseTickets(context.Background(), "e1", "ga", 2))
	events.Wait()

	ev, _ := events.Event("e1")
	tier := ev.Tier("ga")
	assert.Equal(t, 10, tier.Sold)
	assert.Equal(t, 0, tier.Available)
	assert.Equal(t, tier.Quantity-tier.Sold, tier.Available)
	assert.Equal(t, int64(2), ev.Attending)
}

func TestPurchaseBeyondAvailabilityRejected(t *testing.T) {
	docs := newFakeDocs()
	seedEvent(docs, "e1", 10, 9)

	events := NewEventStore(docs, 20)
	require.NoError(t, events.Load(context.Background()))

	err := events.PurchaseTickets(context.Background(), "e1", "ga", 2)
	require.Error(t, err)

	// Nothing moved, locally or remotely.
	ev, _ := events.Event("e1")
	tier := ev.Tier("ga")
	assert.Equal(t, 9, tier.Sold)
	assert.Equal(t, 1, tier.Available)
	assert.Equal(t, int64(0), ev.Attending)
	assert.Zero(t, docs.callCount("update"))
}

func TestConcurrentPurchasesSerializeOnAvailability(t *testing.T) {
	// Two buyers race for the last 5 tickets. Exactly one wins; the
	// loser's rejection leaves local and remote state untouched.
	for i := 0; i < 50; i++ {
		docs := newFakeDocs()
		seedEvent(docs, "e1", 5, 0)

		events := NewEventStore(docs, 20)
		events.SetUser("user-1")
		require.NoError(t, events.Load(context.Background()))

		results := make([]error, 2)
		var wg sync.WaitGroup
		for j := range results {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				results[j] = events.PurchaseTickets(context.Background(), "e1", "ga", 5)
			}(j)
		}
		wg.Wait()
		events.Wait()

		winners := 0
		for _, err := range results {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, model.ErrTierSoldOut)
			}
		}
		require.Equal(t, 1, winners, "exactly one purchase wins the last tickets")

		ev, _ := events.Event("e1")
		tier := ev.Tier("ga")
		assert.Equal(t, 5, tier.Sold)
		assert.Equal(t, 0, tier.Available)
		assert.Equal(t, int64(5), ev.Attending)

		doc, err := docs.Get(context.Background(), gateway.CollectionEvents, "e1")
		require.NoError(t, err)
		tiersDoc, ok := doc["tiers"].([]gateway.Document)
		require.True(t, ok, "remote tiers written once, never wiped: %#v", doc["tiers"])
		require.Len(t, tiersDoc, 1)
		assert.Equal(t, int64(5), tiersDoc[0]["sold"])
		assert.Equal(t, float64(5), doc["attending"])
		assert.Equal(t, 1, docs.callCount("update"), "only the winner writes")
	}
}

func TestPurchaseRejectsNonPositiveCount(t *testing.T) {
	docs := newFakeDocs()
	seedEvent(docs, "e1", 10, 0)

	events := NewEventStore(docs, 20)
	require.NoError(t, events.Load(context.Background()))

	assert.Error(t, events.PurchaseTickets(context.Background(), "e1", "ga", 0))
	assert.Error(t, events.PurchaseTickets(context.Background(), "e1", "ga", -3))
}

func TestPurchaseReleasedOnFailedWrite(t *testing.T) {
	docs := newFakeDocs()
	seedEvent(docs, "e1", 10, 0)
	docs.failOn("update", errors.New("backend down"))

	events := NewEventStore(docs, 20)
	require.NoError(t, events.Load(context.Background()))

	require.NoError(t, events.PurchaseTickets(context.Background(), "e1", "ga", 3))
	events.Wait()

	ev, _ := events.Event("e1")
	tier := ev.Tier("ga")
	assert.Equal(t, 0, tier.Sold, "failed write releases the reservation")
	assert.Equal(t, 10, tier.Available)
	assert.Equal(t, int64(0), ev.Attending)
}

func TestToggleInterestRoundTrip(t *testing.T) {
	docs := newFakeDocs()
	seedEvent(docs, "e1", 10, 0)

	events := NewEventStore(docs, 20)
	events.SetUser("user-1")
	require.NoError(t, events.Load(context.Background()))

	require.NoError(t, events.ToggleInterest(context.Background(), "e1"))
	events.Wait()

	ev, _ := events.Event("e1")
	assert.True(t, ev.IsInterested)
	assert.Equal(t, int64(1), ev.Interested)

	doc, _ := docs.Get(context.Background(), gateway.CollectionEvents, "e1")
	assert.Equal(t, []string{"user-1"}, doc["interestedBy"])
}

func TestEventSnapshotDoesNotAliasStore(t *testing.T) {
	docs := newFakeDocs()
	seedEvent(docs, "e1", 10, 0)

	events := NewEventStore(docs, 20)
	require.NoError(t, events.Load(context.Background()))

	snap := events.Snapshot()
	require.Len(t, snap.Items, 1)
	snap.Items[0].Tiers[0].Sold = 999

	ev, _ := events.Event("e1")
	assert.Equal(t, 0, ev.Tier("ga").Sold, "snapshot items are detached copies")

	// The same holds for single-entity reads.
	ev.Tier("ga").Sold = 777
	again, _ := events.Event("e1")
	assert.Equal(t, 0, again.Tier("ga").Sold)
}

func TestEventFilters(t *testing.T) {
	docs := newFakeDocs()
	seedEvent(docs, "e1", 10, 0)

	events := NewEventStore(docs, 20)
	require.NoError(t, events.Load(context.Background()))

	assert.Len(t, events.InCity("Berlin"), 1)
	assert.Empty(t, events.InCity("Lisbon"))
}
