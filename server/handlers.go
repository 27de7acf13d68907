package server

import (
	"encoding/json"
	"net/http"

	"vasilala/cache"
	"vasilala/config"
	"vasilala/core/auth"
	"vasilala/gateway"
	"vasilala/logger"
	"vasilala/storage"
)

// APIHandler handles all gateway daemon API requests.
type APIHandler struct {
	docs     gateway.DocumentStore
	objects  *storage.MinioStore
	identity *auth.Provider
	bus      *cache.NotificationBus
	feed     *cache.FeedCache
	cfg      *config.Config
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(
	docs gateway.DocumentStore,
	objects *storage.MinioStore,
	identity *auth.Provider,
	bus *cache.NotificationBus,
	feed *cache.FeedCache,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		docs:     docs,
		objects:  objects,
		identity: identity,
		bus:      bus,
		feed:     feed,
		cfg:      cfg,
	}
}

// knownCollections is the set of collections the daemon exposes.
var knownCollections = map[string]bool{
	gateway.CollectionTracks:        true,
	gateway.CollectionPlaylists:     true,
	gateway.CollectionPosts:         true,
	gateway.CollectionEvents:        true,
	gateway.CollectionNotifications: true,
	gateway.CollectionUsers:         true,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
