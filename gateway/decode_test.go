package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vasilala/model"
)

func validTrackDoc() Document {
	return Document{
		"id":         "t1",
		"title":      "Midnight Run",
		"artist":     "Nova",
		"audioUrl":   "https://cdn.example/t1.mp3",
		"duration":   184.5,
		"plays":      float64(10),
		"likes":      float64(3),
		"moderation": "approved",
		"createdAt":  "2026-08-01T12:00:00Z",
	}
}

func TestDecodeTrack(t *testing.T) {
	track, err := DecodeTrack(validTrackDoc())
	require.NoError(t, err)
	assert.Equal(t, "t1", track.ID)
	assert.Equal(t, 184.5, track.Duration)
	assert.Equal(t, int64(10), track.Plays)
	assert.Equal(t, model.ModerationApproved, track.Moderation)
	assert.Equal(t, 2026, track.CreatedAt.Year())
}

func TestDecodeTrackRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(Document)
	}{
		{"missing id", func(d Document) { delete(d, "id") }},
		{"empty title", func(d Document) { d["title"] = "" }},
		{"missing audioUrl", func(d Document) { delete(d, "audioUrl") }},
		{"non-numeric duration", func(d Document) { d["duration"] = "three minutes" }},
		{"non-string id", func(d Document) { d["id"] = 42 }},
		{"bad timestamp", func(d Document) { d["createdAt"] = "yesterday" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validTrackDoc()
			tt.mutate(doc)
			_, err := DecodeTrack(doc)
			assert.Error(t, err)
		})
	}
}

func TestDecodeTrackDefaultsModerationToPending(t *testing.T) {
	doc := validTrackDoc()
	delete(doc, "moderation")
	track, err := DecodeTrack(doc)
	require.NoError(t, err)
	assert.Equal(t, model.ModerationPending, track.Moderation)
}

func TestDecodePlaylistValidatesAggregates(t *testing.T) {
	doc := Document{
		"id":            "pl1",
		"name":          "Mix",
		"ownerId":       "u1",
		"trackIds":      []any{"t1", "t2"},
		"trackCount":    float64(2),
		"totalDuration": 300.0,
	}
	pl, err := DecodePlaylist(doc)
	require.NoError(t, err)
	assert.Equal(t, 2, pl.TrackCount)

	doc["trackCount"] = float64(5)
	_, err = DecodePlaylist(doc)
	assert.Error(t, err, "count out of step with the track list is rejected")
}

func TestDecodeEventRecomputesTierAvailability(t *testing.T) {
	doc := Document{
		"id":          "e1",
		"organizerId": "org",
		"title":       "Open Air",
		"startsAt":    "2026-09-01T20:00:00Z",
		"endsAt":      "2026-09-02T02:00:00Z",
		"tiers": []any{
			map[string]any{
				"id": "ga", "name": "General", "price": 20.0,
				"quantity": float64(100), "sold": float64(40),
				// A stale stored availability must not survive decoding.
				"available": float64(99),
			},
		},
	}
	ev, err := DecodeEvent(doc)
	require.NoError(t, err)
	require.Len(t, ev.Tiers, 1)
	assert.Equal(t, 60, ev.Tiers[0].Available)
}

func TestDecodeEventRejectsOversoldTier(t *testing.T) {
	doc := Document{
		"id":          "e1",
		"organizerId": "org",
		"title":       "Open Air",
		"tiers": []any{
			map[string]any{
				"id": "ga", "name": "General", "price": 20.0,
				"quantity": float64(10), "sold": float64(11),
			},
		},
	}
	_, err := DecodeEvent(doc)
	assert.Error(t, err)
}

func TestDecodeNotificationTimeFormats(t *testing.T) {
	base := Document{"id": "n1", "type": "like", "title": "Hi"}

	base["createdAt"] = "2026-08-30T10:00:00Z"
	n, err := DecodeNotification(base)
	require.NoError(t, err)
	assert.Equal(t, 2026, n.CreatedAt.Year())

	// Unix seconds, as some backends serialize timestamps.
	base["createdAt"] = float64(1756540800)
	n, err = DecodeNotification(base)
	require.NoError(t, err)
	assert.False(t, n.CreatedAt.IsZero())

	base["createdAt"] = time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	n, err = DecodeNotification(base)
	require.NoError(t, err)
	assert.Equal(t, time.August, n.CreatedAt.Month())
}

func TestDecodeProfileDefaults(t *testing.T) {
	p, err := DecodeProfile(Document{"id": "u1", "username": "nova"})
	require.NoError(t, err)
	assert.Equal(t, model.UserTypeFan, p.UserType)
	assert.Equal(t, model.VerificationPending, p.Verification)
}
