package gateway

import (
	"context"
	"errors"
	"io"
	"time"

	"vasilala/model"
)

// ErrNotFound is returned when a document id does not exist in a collection.
var ErrNotFound = errors.New("document not found")

// Document is an untyped document as the hosted backend returns it.
// Typed entities are produced from Documents by the decoders in this
// package; malformed documents are rejected at this boundary.
type Document map[string]any

// Op is a query filter operator.
type Op string

const (
	OpEqual         Op = "=="
	OpNotEqual      Op = "!="
	OpLess          Op = "<"
	OpLessEqual     Op = "<="
	OpGreater       Op = ">"
	OpGreaterEqual  Op = ">="
	OpArrayContains Op = "array-contains"
)

// Filter is one field condition on a query.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a filtered, ordered, cursor-paginated read.
// StartAfter is the id of the last document seen on the previous page.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
	StartAfter string
}

// DocumentStore is the document half of the Remote Data Gateway:
// CRUD by id, filtered queries with cursor pagination, atomic field
// increment, and array-union/array-remove for set-like fields.
type DocumentStore interface {
	Create(ctx context.Context, collection string, doc Document) (string, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Update(ctx context.Context, collection, id string, patch Document) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Document, error)
	Increment(ctx context.Context, collection, id, field string, delta int64) error
	ArrayUnion(ctx context.Context, collection, id, field string, values ...string) error
	ArrayRemove(ctx context.Context, collection, id, field string, values ...string) error
}

// ProgressFunc reports upload progress as bytes written out of total.
type ProgressFunc func(written, total int64)

// ObjectStore is the binary-object half of the gateway.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string, progress ProgressFunc) (string, error)
	PublicURL(key string) string
}

// Session is an authenticated identity session.
type Session struct {
	Token     string            `json:"token"`
	User      model.UserProfile `json:"user"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Identity is the auth half of the gateway. OnSessionChange registers a
// callback invoked with the new session on sign-in and nil on sign-out;
// it returns an unsubscribe function.
type Identity interface {
	SignUp(ctx context.Context, email, username, password string, userType model.UserType) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	OnSessionChange(fn func(*Session)) (unsubscribe func())
}

// Gateway bundles the three backend surfaces the client consumes.
type Gateway struct {
	Docs     DocumentStore
	Objects  ObjectStore
	Identity Identity
}

// Collection names used across the stores and the gateway daemon.
const (
	CollectionTracks        = "tracks"
	CollectionPlaylists     = "playlists"
	CollectionPosts         = "posts"
	CollectionEvents        = "events"
	CollectionNotifications = "notifications"
	CollectionUsers         = "users"
)
