package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"vasilala/gateway"
	"vasilala/logger"
	"vasilala/model"
)

// errNoChange aborts a playlist mutation that would be a no-op, so no
// remote write is issued for it.
var errNoChange = errors.New("playlist unchanged")

// MusicStore holds the track library and the user's playlists.
type MusicStore struct {
	tracks    *Store[model.Track]
	playlists *Store[model.Playlist]
	docs      gateway.DocumentStore
	userID    string
}

// NewMusicStore creates the music store.
func NewMusicStore(docs gateway.DocumentStore, pageSize int) *MusicStore {
	m := &MusicStore{docs: docs}
	m.tracks = New("music.tracks", func(t model.Track) string { return t.ID }, m.fetchTracks, pageSize)
	m.playlists = New("music.playlists", func(p model.Playlist) string { return p.ID }, m.fetchPlaylists, pageSize).
		WithClone(model.Playlist.Clone)
	return m
}

func (m *MusicStore) fetchTracks(ctx context.Context, cursor string, pageSize int) ([]model.Track, error) {
	docs, err := m.docs.Query(ctx, gateway.Query{
		Collection: gateway.CollectionTracks,
		Filters: []gateway.Filter{
			{Field: "moderation", Op: gateway.OpEqual, Value: string(model.ModerationApproved)},
		},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      pageSize,
		StartAfter: cursor,
	})
	if err != nil {
		return nil, err
	}

	tracks := make([]model.Track, 0, len(docs))
	for _, doc := range docs {
		track, err := gateway.DecodeTrack(doc)
		if err != nil {
			logger.Warn("rejecting malformed track document", logger.ErrorField(err))
			continue
		}
		tracks = append(tracks, *track)
	}
	return tracks, nil
}

func (m *MusicStore) fetchPlaylists(ctx context.Context, cursor string, pageSize int) ([]model.Playlist, error) {
	docs, err := m.docs.Query(ctx, gateway.Query{
		Collection: gateway.CollectionPlaylists,
		Filters: []gateway.Filter{
			{Field: "ownerId", Op: gateway.OpEqual, Value: m.userID},
		},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      pageSize,
		StartAfter: cursor,
	})
	if err != nil {
		return nil, err
	}

	playlists := make([]model.Playlist, 0, len(docs))
	for _, doc := range docs {
		pl, err := gateway.DecodePlaylist(doc)
		if err != nil {
			logger.Warn("rejecting malformed playlist document", logger.ErrorField(err))
			continue
		}
		playlists = append(playlists, *pl)
	}
	return playlists, nil
}

// SetUser switches the acting user and clears per-user snapshot state.
func (m *MusicStore) SetUser(userID string) {
	m.userID = userID
	m.tracks.Reset()
	m.playlists.Reset()
}

// Load fetches the first page of the track library.
func (m *MusicStore) Load(ctx context.Context) error {
	return m.tracks.Load(ctx)
}

// LoadMore fetches the next page of the track library.
func (m *MusicStore) LoadMore(ctx context.Context) error {
	return m.tracks.LoadMore(ctx)
}

// LoadPlaylists fetches the user's playlists.
func (m *MusicStore) LoadPlaylists(ctx context.Context) error {
	return m.playlists.Load(ctx)
}

// Tracks returns a copy of the track snapshot.
func (m *MusicStore) Tracks() Snapshot[model.Track] {
	return m.tracks.Snapshot()
}

// Playlists returns a copy of the playlist snapshot.
func (m *MusicStore) Playlists() Snapshot[model.Playlist] {
	return m.playlists.Snapshot()
}

// Track returns a loaded track by id.
func (m *MusicStore) Track(id string) (model.Track, bool) {
	return m.tracks.Get(id)
}

// Playlist returns a loaded playlist by id.
func (m *MusicStore) Playlist(id string) (model.Playlist, bool) {
	return m.playlists.Get(id)
}

// SearchTracks returns loaded tracks whose title, artist or album
// contains the query, case-insensitively.
func (m *MusicStore) SearchTracks(query string) []model.Track {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	return m.tracks.Filter(func(t model.Track) bool {
		return strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Artist), q) ||
			strings.Contains(strings.ToLower(t.Album), q)
	})
}

// SubscribeTracks registers a track snapshot listener.
func (m *MusicStore) SubscribeTracks(fn func(Snapshot[model.Track])) func() {
	return m.tracks.Subscribe(fn)
}

// SubscribePlaylists registers a playlist snapshot listener.
func (m *MusicStore) SubscribePlaylists(fn func(Snapshot[model.Playlist])) func() {
	return m.playlists.Subscribe(fn)
}

// ToggleLike flips the like flag and counter on a track.
func (m *MusicStore) ToggleLike(ctx context.Context, trackID string) error {
	var wasLiked bool
	return m.tracks.Optimistic(ctx, "toggleLike", Mutation[model.Track]{
		ID: trackID,
		Apply: func(t *model.Track) error {
			wasLiked = t.Liked
			ToggleCounter(&t.Liked, &t.Likes)
			return nil
		},
		Compensate: func(t *model.Track) {
			ToggleCounter(&t.Liked, &t.Likes)
		},
		Remote: func(ctx context.Context) error {
			delta := int64(1)
			if wasLiked {
				delta = -1
			}
			if err := m.docs.Increment(ctx, gateway.CollectionTracks, trackID, "likes", delta); err != nil {
				return err
			}
			if m.userID == "" {
				return nil
			}
			if wasLiked {
				return m.docs.ArrayRemove(ctx, gateway.CollectionTracks, trackID, "likedBy", m.userID)
			}
			return m.docs.ArrayUnion(ctx, gateway.CollectionTracks, trackID, "likedBy", m.userID)
		},
	})
}

// RegisterPlay bumps a track's play counter when playback starts.
func (m *MusicStore) RegisterPlay(ctx context.Context, trackID string) error {
	return m.tracks.Optimistic(ctx, "registerPlay", Mutation[model.Track]{
		ID: trackID,
		Apply: func(t *model.Track) error {
			t.Plays++
			return nil
		},
		Compensate: func(t *model.Track) {
			t.Plays--
			if t.Plays < 0 {
				t.Plays = 0
			}
		},
		Remote: func(ctx context.Context) error {
			return m.docs.Increment(ctx, gateway.CollectionTracks, trackID, "plays", 1)
		},
	})
}

// CreatePlaylist creates an empty playlist owned by the acting user.
func (m *MusicStore) CreatePlaylist(ctx context.Context, name string) (string, error) {
	now := time.Now()
	doc := gateway.Document{
		"name":          name,
		"ownerId":       m.userID,
		"trackIds":      []string{},
		"trackCount":    int64(0),
		"totalDuration": float64(0),
	}
	id, err := m.docs.Create(ctx, gateway.CollectionPlaylists, doc)
	if err != nil {
		return "", err
	}
	m.playlists.Insert(model.Playlist{
		ID:        id,
		Name:      name,
		OwnerID:   m.userID,
		CreatedAt: now,
	})
	return id, nil
}

// AddToPlaylist appends a track to a playlist, maintaining the count and
// duration aggregates in step with the track list. Adding a track that
// is already present is a no-op.
func (m *MusicStore) AddToPlaylist(ctx context.Context, playlistID string, track model.Track) error {
	var count int
	var duration float64
	err := m.playlists.Optimistic(ctx, "addToPlaylist", Mutation[model.Playlist]{
		ID: playlistID,
		Apply: func(p *model.Playlist) error {
			if p.Contains(track.ID) {
				return errNoChange
			}
			p.TrackIDs = append(p.TrackIDs, track.ID)
			p.TrackCount = len(p.TrackIDs)
			p.TotalDuration += track.Duration
			count = p.TrackCount
			duration = p.TotalDuration
			return nil
		},
		Compensate: func(p *model.Playlist) {
			for i, id := range p.TrackIDs {
				if id == track.ID {
					p.TrackIDs = append(p.TrackIDs[:i], p.TrackIDs[i+1:]...)
					break
				}
			}
			p.TrackCount = len(p.TrackIDs)
			p.TotalDuration -= track.Duration
			if p.TotalDuration < 0 {
				p.TotalDuration = 0
			}
		},
		Remote: func(ctx context.Context) error {
			if err := m.docs.ArrayUnion(ctx, gateway.CollectionPlaylists, playlistID, "trackIds", track.ID); err != nil {
				return err
			}
			return m.docs.Update(ctx, gateway.CollectionPlaylists, playlistID, gateway.Document{
				"trackCount":    int64(count),
				"totalDuration": duration,
			})
		},
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}

// RemoveFromPlaylist removes a track from a playlist, keeping the
// aggregates consistent. Removing an absent track is a no-op.
func (m *MusicStore) RemoveFromPlaylist(ctx context.Context, playlistID string, track model.Track) error {
	var count int
	var duration float64
	err := m.playlists.Optimistic(ctx, "removeFromPlaylist", Mutation[model.Playlist]{
		ID: playlistID,
		Apply: func(p *model.Playlist) error {
			if !p.Contains(track.ID) {
				return errNoChange
			}
			for i, id := range p.TrackIDs {
				if id == track.ID {
					p.TrackIDs = append(p.TrackIDs[:i], p.TrackIDs[i+1:]...)
					break
				}
			}
			p.TrackCount = len(p.TrackIDs)
			p.TotalDuration -= track.Duration
			if p.TotalDuration < 0 {
				p.TotalDuration = 0
			}
			count = p.TrackCount
			duration = p.TotalDuration
			return nil
		},
		Compensate: func(p *model.Playlist) {
			p.TrackIDs = append(p.TrackIDs, track.ID)
			p.TrackCount = len(p.TrackIDs)
			p.TotalDuration += track.Duration
		},
		Remote: func(ctx context.Context) error {
			if err := m.docs.ArrayRemove(ctx, gateway.CollectionPlaylists, playlistID, "trackIds", track.ID); err != nil {
				return err
			}
			return m.docs.Update(ctx, gateway.CollectionPlaylists, playlistID, gateway.Document{
				"trackCount":    int64(count),
				"totalDuration": duration,
			})
		},
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}

// DeletePlaylist removes a playlist entirely.
func (m *MusicStore) DeletePlaylist(ctx context.Context, playlistID string) error {
	if err := m.docs.Delete(ctx, gateway.CollectionPlaylists, playlistID); err != nil {
		return err
	}
	m.playlists.Remove(playlistID)
	return nil
}

// Wait blocks until in-flight remote writes settle.
func (m *MusicStore) Wait() {
	m.tracks.Wait()
	m.playlists.Wait()
}
