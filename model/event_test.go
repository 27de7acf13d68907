package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketTierPurchase(t *testing.T) {
	tier := TicketTier{ID: "ga", Quantity: 10, Sold: 3, Available: 7}

	require.NoError(t, tier.Purchase(5))
	assert.Equal(t, 8, tier.Sold)
	assert.Equal(t, 2, tier.Available)
	assert.Equal(t, tier.Quantity-tier.Sold, tier.Available)

	err := tier.Purchase(3)
	assert.ErrorIs(t, err, ErrTierSoldOut)
	assert.Equal(t, 8, tier.Sold, "rejected purchase leaves the tier unchanged")
	assert.Equal(t, 2, tier.Available)

	assert.Error(t, tier.Purchase(0))
	assert.Error(t, tier.Purchase(-1))

	require.NoError(t, tier.Purchase(2))
	assert.Equal(t, 0, tier.Available)
}

func TestEventTierLookup(t *testing.T) {
	ev := Event{Tiers: []TicketTier{{ID: "ga"}, {ID: "vip"}}}

	tier := ev.Tier("vip")
	require.NotNil(t, tier)
	assert.Equal(t, "vip", tier.ID)
	assert.Nil(t, ev.Tier("nope"))

	// The returned pointer aliases the event's tier so purchases stick.
	require.NotNil(t, ev.Tier("ga"))
	ev.Tier("ga").Quantity = 5
	assert.Equal(t, 5, ev.Tiers[0].Quantity)
}

func TestPermissionsFor(t *testing.T) {
	tests := []struct {
		name string
		p    UserProfile
		want Permissions
	}{
		{
			"fan",
			UserProfile{UserType: UserTypeFan, Verification: VerificationApproved},
			Permissions{CanPostVideos: true},
		},
		{
			"verified artist",
			UserProfile{UserType: UserTypeArtist, Verification: VerificationApproved},
			Permissions{CanPostVideos: true, CanPublishTracks: true},
		},
		{
			"unverified artist",
			UserProfile{UserType: UserTypeArtist, Verification: VerificationPending},
			Permissions{CanPostVideos: true},
		},
		{
			"verified organizer",
			UserProfile{UserType: UserTypeOrganizer, Verification: VerificationApproved},
			Permissions{CanPostVideos: true, CanCreateEvents: true, CanSellTickets: true},
		},
		{
			"rejected venue",
			UserProfile{UserType: UserTypeVenue, Verification: VerificationRejected},
			Permissions{CanPostVideos: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PermissionsFor(tt.p))
		})
	}
}
