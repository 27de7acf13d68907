package model

import "time"

// Playlist is an ordered list of track ids. TrackCount and TotalDuration
// are maintained incrementally by playlist mutations and must always
// satisfy TrackCount == len(TrackIDs) and
// TotalDuration == sum of member durations.
type Playlist struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	OwnerID       string    `json:"ownerId"`
	TrackIDs      []string  `json:"trackIds"`
	TrackCount    int       `json:"trackCount"`
	TotalDuration float64   `json:"totalDuration"` // seconds
	CoverURL      string    `json:"coverUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Clone returns a copy whose track id slice does not alias the original.
func (p Playlist) Clone() Playlist {
	p.TrackIDs = append([]string(nil), p.TrackIDs...)
	return p
}

// Contains reports whether the playlist holds the given track.
func (p *Playlist) Contains(trackID string) bool {
	for _, id := range p.TrackIDs {
		if id == trackID {
			return true
		}
	}
	return false
}
