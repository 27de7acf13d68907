package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"vasilala/model"
)

// The hosted document store is schemaless; documents arrive as untyped
// maps with JSON number/string representations. The decoders below
// validate and convert them into the typed entities, returning an error
// for documents missing required fields instead of propagating zero
// values silently.

func docString(doc Document, field string, required bool) (string, error) {
	v, ok := doc[field]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing field %q", field)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q: expected string, got %T", field, v)
	}
	if required && s == "" {
		return "", fmt.Errorf("field %q is empty", field)
	}
	return s, nil
}

func docFloat(doc Document, field string) (float64, error) {
	v, ok := doc[field]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("field %q: expected number, got %T", field, v)
	}
}

func docInt(doc Document, field string) (int64, error) {
	f, err := docFloat(doc, field)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func docBool(doc Document, field string) (bool, error) {
	v, ok := doc[field]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("field %q: expected bool, got %T", field, v)
	}
	return b, nil
}

func docTime(doc Document, field string) (time.Time, error) {
	v, ok := doc[field]
	if !ok || v == nil {
		return time.Time{}, nil
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("field %q: %w", field, err)
		}
		return parsed, nil
	case float64:
		// Unix seconds.
		return time.Unix(int64(t), 0), nil
	default:
		return time.Time{}, fmt.Errorf("field %q: expected timestamp, got %T", field, v)
	}
}

func docStringSlice(doc Document, field string) ([]string, error) {
	v, ok := doc[field]
	if !ok || v == nil {
		return nil, nil
	}
	switch s := v.(type) {
	case []string:
		return s, nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("field %q: expected string element, got %T", field, item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: expected array, got %T", field, v)
	}
}

func docMapSlice(doc Document, field string) ([]Document, error) {
	v, ok := doc[field]
	if !ok || v == nil {
		return nil, nil
	}
	switch s := v.(type) {
	case []Document:
		return s, nil
	case []map[string]any:
		out := make([]Document, 0, len(s))
		for _, m := range s {
			out = append(out, Document(m))
		}
		return out, nil
	case []any:
		out := make([]Document, 0, len(s))
		for _, item := range s {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("field %q: expected object element, got %T", field, item)
			}
			out = append(out, Document(m))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: expected array of objects, got %T", field, v)
	}
}

func docMap(doc Document, field string) (Document, error) {
	v, ok := doc[field]
	if !ok || v == nil {
		return nil, nil
	}
	switch m := v.(type) {
	case Document:
		return m, nil
	case map[string]any:
		return Document(m), nil
	default:
		return nil, fmt.Errorf("field %q: expected object, got %T", field, v)
	}
}

// DecodeTrack converts a track document into a model.Track.
func DecodeTrack(doc Document) (*model.Track, error) {
	t := &model.Track{}
	var err error
	if t.ID, err = docString(doc, "id", true); err != nil {
		return nil, fmt.Errorf("decode track: %w", err)
	}
	if t.Title, err = docString(doc, "title", true); err != nil {
		return nil, fmt.Errorf("decode track %s: %w", t.ID, err)
	}
	if t.Artist, err = docString(doc, "artist", true); err != nil {
		return nil, fmt.Errorf("decode track %s: %w", t.ID, err)
	}
	if t.AudioURL, err = docString(doc, "audioUrl", true); err != nil {
		return nil, fmt.Errorf("decode track %s: %w", t.ID, err)
	}
	t.Album, _ = docString(doc, "album", false)
	t.CoverURL, _ = docString(doc, "coverUrl", false)
	if t.Duration, err = docFloat(doc, "duration"); err != nil {
		return nil, fmt.Errorf("decode track %s: %w", t.ID, err)
	}
	if t.Plays, err = docInt(doc, "plays"); err != nil {
		return nil, fmt.Errorf("decode track %s: %w", t.ID, err)
	}
	if t.Likes, err = docInt(doc, "likes"); err != nil {
		return nil, fmt.Errorf("decode track %s: %w", t.ID, err)
	}
	if t.Shares, err = docInt(doc, "shares"); err != nil {
		return nil, fmt.Errorf("decode track %s: %w", t.ID, err)
	}
	if t.Liked, err = docBool(doc, "liked"); err != nil {
		return nil, fmt.Errorf("decode track %s: %w", t.ID, err)
	}
	t.Downloaded, _ = docBool(doc, "downloaded")
	t.InPlaylist, _ = docBool(doc, "inPlaylist")
	mod, _ := docString(doc, "moderation", false)
	if mod == "" {
		mod = string(model.ModerationPending)
	}
	t.Moderation = model.ModerationStatus(mod)
	if t.CreatedAt, err = docTime(doc, "createdAt"); err != nil {
		return nil, fmt.Errorf("decode track %s: %w", t.ID, err)
	}
	t.UpdatedAt, _ = docTime(doc, "updatedAt")
	return t, nil
}

// DecodePlaylist converts a playlist document into a model.Playlist.
func DecodePlaylist(doc Document) (*model.Playlist, error) {
	p := &model.Playlist{}
	var err error
	if p.ID, err = docString(doc, "id", true); err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}
	if p.Name, err = docString(doc, "name", true); err != nil {
		return nil, fmt.Errorf("decode playlist %s: %w", p.ID, err)
	}
	if p.OwnerID, err = docString(doc, "ownerId", true); err != nil {
		return nil, fmt.Errorf("decode playlist %s: %w", p.ID, err)
	}
	if p.TrackIDs, err = docStringSlice(doc, "trackIds"); err != nil {
		return nil, fmt.Errorf("decode playlist %s: %w", p.ID, err)
	}
	count, err := docInt(doc, "trackCount")
	if err != nil {
		return nil, fmt.Errorf("decode playlist %s: %w", p.ID, err)
	}
	p.TrackCount = int(count)
	if p.TotalDuration, err = docFloat(doc, "totalDuration"); err != nil {
		return nil, fmt.Errorf("decode playlist %s: %w", p.ID, err)
	}
	if p.TrackCount != len(p.TrackIDs) {
		return nil, fmt.Errorf("decode playlist %s: trackCount %d does not match %d tracks", p.ID, p.TrackCount, len(p.TrackIDs))
	}
	p.CoverURL, _ = docString(doc, "coverUrl", false)
	p.CreatedAt, _ = docTime(doc, "createdAt")
	p.UpdatedAt, _ = docTime(doc, "updatedAt")
	return p, nil
}

// DecodePost converts a feed document into a model.VideoPost.
func DecodePost(doc Document) (*model.VideoPost, error) {
	p := &model.VideoPost{}
	var err error
	if p.ID, err = docString(doc, "id", true); err != nil {
		return nil, fmt.Errorf("decode post: %w", err)
	}
	if p.AuthorID, err = docString(doc, "authorId", true); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", p.ID, err)
	}
	if p.MediaURL, err = docString(doc, "mediaUrl", true); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", p.ID, err)
	}
	p.AuthorName, _ = docString(doc, "authorName", false)
	p.ThumbnailURL, _ = docString(doc, "thumbnailUrl", false)
	p.Caption, _ = docString(doc, "caption", false)
	if p.Hashtags, err = docStringSlice(doc, "hashtags"); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", p.ID, err)
	}
	if p.Likes, err = docInt(doc, "likes"); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", p.ID, err)
	}
	if p.Comments, err = docInt(doc, "comments"); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", p.ID, err)
	}
	if p.Shares, err = docInt(doc, "shares"); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", p.ID, err)
	}
	if p.Views, err = docInt(doc, "views"); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", p.ID, err)
	}
	p.Liked, _ = docBool(doc, "liked")
	p.Bookmarked, _ = docBool(doc, "bookmarked")
	p.CreatedAt, _ = docTime(doc, "createdAt")
	p.UpdatedAt, _ = docTime(doc, "updatedAt")
	return p, nil
}

// DecodeEvent converts an event document into a model.Event, including
// its ticket tiers. Tier availability is recomputed from quantity and
// sold so a stale stored value cannot violate the invariant.
func DecodeEvent(doc Document) (*model.Event, error) {
	e := &model.Event{}
	var err error
	if e.ID, err = docString(doc, "id", true); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if e.OrganizerID, err = docString(doc, "organizerId", true); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
	}
	if e.Title, err = docString(doc, "title", true); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
	}
	e.Description, _ = docString(doc, "description", false)
	e.Timezone, _ = docString(doc, "timezone", false)
	e.CoverURL, _ = docString(doc, "coverUrl", false)

	venueDoc, err := docMap(doc, "venue")
	if err != nil {
		return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
	}
	if venueDoc != nil {
		if e.Venue.Name, err = docString(venueDoc, "name", true); err != nil {
			return nil, fmt.Errorf("decode event %s venue: %w", e.ID, err)
		}
		e.Venue.Address, _ = docString(venueDoc, "address", false)
		e.Venue.City, _ = docString(venueDoc, "city", false)
		e.Venue.Country, _ = docString(venueDoc, "country", false)
	}

	if e.StartsAt, err = docTime(doc, "startsAt"); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
	}
	if e.EndsAt, err = docTime(doc, "endsAt"); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
	}

	tierDocs, err := docMapSlice(doc, "tiers")
	if err != nil {
		return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
	}
	for _, td := range tierDocs {
		tier, err := decodeTier(td)
		if err != nil {
			return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
		}
		e.Tiers = append(e.Tiers, *tier)
	}

	if e.Views, err = docInt(doc, "views"); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
	}
	if e.Interested, err = docInt(doc, "interested"); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
	}
	if e.Attending, err = docInt(doc, "attending"); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
	}
	e.IsInterested, _ = docBool(doc, "isInterested")
	e.CreatedAt, _ = docTime(doc, "createdAt")
	e.UpdatedAt, _ = docTime(doc, "updatedAt")
	return e, nil
}

func decodeTier(doc Document) (*model.TicketTier, error) {
	t := &model.TicketTier{}
	var err error
	if t.ID, err = docString(doc, "id", true); err != nil {
		return nil, fmt.Errorf("tier: %w", err)
	}
	if t.Name, err = docString(doc, "name", true); err != nil {
		return nil, fmt.Errorf("tier %s: %w", t.ID, err)
	}
	if t.Price, err = docFloat(doc, "price"); err != nil {
		return nil, fmt.Errorf("tier %s: %w", t.ID, err)
	}
	t.Currency, _ = docString(doc, "currency", false)
	qty, err := docInt(doc, "quantity")
	if err != nil {
		return nil, fmt.Errorf("tier %s: %w", t.ID, err)
	}
	sold, err := docInt(doc, "sold")
	if err != nil {
		return nil, fmt.Errorf("tier %s: %w", t.ID, err)
	}
	t.Quantity = int(qty)
	t.Sold = int(sold)
	if t.Sold > t.Quantity || t.Sold < 0 {
		return nil, fmt.Errorf("tier %s: sold %d out of range for quantity %d", t.ID, t.Sold, t.Quantity)
	}
	t.Available = t.Quantity - t.Sold
	return t, nil
}

// DecodeNotification converts a notification document.
func DecodeNotification(doc Document) (*model.Notification, error) {
	n := &model.Notification{}
	var err error
	if n.ID, err = docString(doc, "id", true); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	typ, err := docString(doc, "type", true)
	if err != nil {
		return nil, fmt.Errorf("decode notification %s: %w", n.ID, err)
	}
	n.Type = model.NotificationType(typ)
	if n.Title, err = docString(doc, "title", true); err != nil {
		return nil, fmt.Errorf("decode notification %s: %w", n.ID, err)
	}
	n.UserID, _ = docString(doc, "userId", false)
	n.Body, _ = docString(doc, "body", false)
	n.ActionLink, _ = docString(doc, "actionLink", false)
	n.Read, _ = docBool(doc, "read")
	if n.CreatedAt, err = docTime(doc, "createdAt"); err != nil {
		return nil, fmt.Errorf("decode notification %s: %w", n.ID, err)
	}
	return n, nil
}

// DecodeProfile converts a user document into a model.UserProfile.
func DecodeProfile(doc Document) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	var err error
	if p.ID, err = docString(doc, "id", true); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p.Username, err = docString(doc, "username", true); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", p.ID, err)
	}
	p.Email, _ = docString(doc, "email", false)
	p.DisplayName, _ = docString(doc, "displayName", false)
	p.AvatarURL, _ = docString(doc, "avatarUrl", false)
	typ, _ := docString(doc, "userType", false)
	if typ == "" {
		typ = string(model.UserTypeFan)
	}
	p.UserType = model.UserType(typ)
	status, _ := docString(doc, "verification", false)
	if status == "" {
		status = string(model.VerificationPending)
	}
	p.Verification = model.VerificationStatus(status)
	p.CreatedAt, _ = docTime(doc, "createdAt")
	p.UpdatedAt, _ = docTime(doc, "updatedAt")
	return p, nil
}
