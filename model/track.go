package model

import "time"

// ModerationStatus is the review state of uploaded media.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// Track represents an audio track in the music library.
type Track struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Artist     string           `json:"artist"`
	Album      string           `json:"album,omitempty"`
	Duration   float64          `json:"duration"` // seconds
	AudioURL   string           `json:"audioUrl"`
	CoverURL   string           `json:"coverUrl,omitempty"`
	Plays      int64            `json:"plays"`
	Likes      int64            `json:"likes"`
	Shares     int64            `json:"shares"`
	Liked      bool             `json:"liked"`
	Downloaded bool             `json:"downloaded"`
	InPlaylist bool             `json:"inPlaylist"`
	Moderation ModerationStatus `json:"moderation"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}
