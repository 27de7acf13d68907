package model

import "time"

// VideoPost represents one entry in the short-video feed.
//
// Liked and Bookmarked are client-local interaction flags layered on top
// of the remote document; the displayed counters reflect optimistic
// updates and are not guaranteed to match the server aggregate.
type VideoPost struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName,omitempty"`
	MediaURL     string    `json:"mediaUrl"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Caption      string    `json:"caption"`
	Hashtags     []string  `json:"hashtags,omitempty"`
	Likes        int64     `json:"likes"`
	Comments     int64     `json:"comments"`
	Shares       int64     `json:"shares"`
	Views        int64     `json:"views"`
	Liked        bool      `json:"liked"`
	Bookmarked   bool      `json:"bookmarked"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Clone returns a copy whose hashtag slice does not alias the original.
func (p VideoPost) Clone() VideoPost {
	p.Hashtags = append([]string(nil), p.Hashtags...)
	return p
}
