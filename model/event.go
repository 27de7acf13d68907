package model

import (
	"errors"
	"time"
)

// ErrTierSoldOut is returned when a purchase exceeds tier availability.
var ErrTierSoldOut = errors.New("not enough tickets available")

// Venue describes where an event takes place.
type Venue struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// TicketTier is one purchasable category of event entry.
// Invariant: Available == Quantity - Sold, and Available never goes negative.
type TicketTier struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Quantity  int     `json:"quantity"`
	Sold      int     `json:"sold"`
	Available int     `json:"available"`
}

// Purchase reserves n tickets from the tier. A request exceeding
// availability is rejected and leaves the tier unchanged.
func (t *TicketTier) Purchase(n int) error {
	if n <= 0 {
		return errors.New("ticket count must be positive")
	}
	if n > t.Available {
		return ErrTierSoldOut
	}
	t.Sold += n
	t.Available = t.Quantity - t.Sold
	return nil
}

// Event represents an event listing in the marketplace.
type Event struct {
	ID           string       `json:"id"`
	OrganizerID  string       `json:"organizerId"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Venue        Venue        `json:"venue"`
	StartsAt     time.Time    `json:"startsAt"`
	EndsAt       time.Time    `json:"endsAt"`
	Timezone     string       `json:"timezone"`
	Tiers        []TicketTier `json:"tiers"`
	Views        int64        `json:"views"`
	Interested   int64        `json:"interested"`
	Attending    int64        `json:"attending"`
	IsInterested bool         `json:"isInterested"`
	CoverURL     string       `json:"coverUrl,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Clone returns a copy whose tier slice does not alias the original.
func (e Event) Clone() Event {
	e.Tiers = append([]TicketTier(nil), e.Tiers...)
	return e
}

// Tier returns the tier with the given id, or nil.
func (e *Event) Tier(tierID string) *TicketTier {
	for i := range e.Tiers {
		if e.Tiers[i].ID == tierID {
			return &e.Tiers[i]
		}
	}
	return nil
}
