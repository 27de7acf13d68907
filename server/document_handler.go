package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"vasilala/gateway"
	"vasilala/logger"
	"vasilala/model"

	"github.com/gorilla/mux"
)

const maxQueryLimit = 100

// collectionFromRequest resolves and validates the {collection} path var.
func collectionFromRequest(r *http.Request) (string, bool) {
	name := mux.Vars(r)["collection"]
	return name, knownCollections[name]
}

// QueryDocumentsHandler runs a filtered, paginated query.
//
// Filters arrive as repeated where=field:op:value parameters, e.g.
// ?where=moderation:==:approved&orderBy=createdAt&desc=1&limit=20.
func (h *APIHandler) QueryDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}

	q := gateway.Query{
		Collection: collection,
		OrderBy:    r.URL.Query().Get("orderBy"),
		Descending: r.URL.Query().Get("desc") == "1",
		StartAfter: r.URL.Query().Get("after"),
		Limit:      h.cfg.DefaultPageSize,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxQueryLimit {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}
	for _, raw := range r.URL.Query()["where"] {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			writeError(w, http.StatusBadRequest, "invalid where clause")
			return
		}
		q.Filters = append(q.Filters, gateway.Filter{
			Field: parts[0],
			Op:    gateway.Op(parts[1]),
			Value: parts[2],
		})
	}

	docs, err := h.docs.Query(r.Context(), q)
	if err != nil {
		logger.Error("query failed", logger.String("collection", collection), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// GetDocumentHandler returns one document by id.
func (h *APIHandler) GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	id := mux.Vars(r)["id"]

	doc, err := h.docs.Get(r.Context(), collection, id)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		logger.Error("get failed", logger.String("collection", collection), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "get failed")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CreateDocumentHandler inserts a document and returns its id.
func (h *APIHandler) CreateDocumentHandler(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}

	var doc gateway.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid document body")
		return
	}

	id, err := h.docs.Create(r.Context(), collection, doc)
	if err != nil {
		logger.Error("create failed", logger.String("collection", collection), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}
	if collection == gateway.CollectionPosts {
		h.invalidateTrending(r)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// UpdateDocumentHandler merges a patch into a document.
func (h *APIHandler) UpdateDocumentHandler(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	id := mux.Vars(r)["id"]

	var patch gateway.Document
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patch body")
		return
	}

	if err := h.docs.Update(r.Context(), collection, id, patch); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		logger.Error("update failed", logger.String("collection", collection), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocumentHandler removes a document.
func (h *APIHandler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	id := mux.Vars(r)["id"]

	if err := h.docs.Delete(r.Context(), collection, id); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		logger.Error("delete failed", logger.String("collection", collection), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IncrementHandler applies an atomic delta to a numeric field.
func (h *APIHandler) IncrementHandler(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	id := mux.Vars(r)["id"]

	var req struct {
		Field string `json:"field"`
		Delta int64  `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Field == "" {
		writeError(w, http.StatusBadRequest, "invalid increment body")
		return
	}

	if err := h.docs.Increment(r.Context(), collection, id, req.Field, req.Delta); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ArrayOpHandler applies a set-union or set-remove to an array field.
func (h *APIHandler) ArrayOpHandler(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	id := mux.Vars(r)["id"]

	var req struct {
		Field  string   `json:"field"`
		Op     string   `json:"op"`
		Values []string `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Field == "" {
		writeError(w, http.StatusBadRequest, "invalid array op body")
		return
	}

	var err error
	switch req.Op {
	case "union":
		err = h.docs.ArrayUnion(r.Context(), collection, id, req.Field, req.Values...)
	case "remove":
		err = h.docs.ArrayRemove(r.Context(), collection, id, req.Field, req.Values...)
	default:
		writeError(w, http.StatusBadRequest, "op must be union or remove")
		return
	}
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NotifyHandler persists a notification for a user and publishes it on
// the live channel.
func (h *APIHandler) NotifyHandler(w http.ResponseWriter, r *http.Request) {
	targetID := mux.Vars(r)["user_id"]

	var req struct {
		Type       string `json:"type"`
		Title      string `json:"title"`
		Body       string `json:"body"`
		ActionLink string `json:"actionLink"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeError(w, http.StatusBadRequest, "invalid notification body")
		return
	}

	n := model.NewNotification(model.NotificationType(req.Type), req.Title, req.Body)
	n.UserID = targetID
	n.ActionLink = req.ActionLink
	if _, err := h.docs.Create(r.Context(), gateway.CollectionNotifications, gateway.Document{
		"id":         n.ID,
		"userId":     n.UserID,
		"type":       string(n.Type),
		"title":      n.Title,
		"body":       n.Body,
		"actionLink": n.ActionLink,
		"read":       false,
	}); err != nil {
		logger.Error("failed to persist notification", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to persist notification")
		return
	}
	if err := h.bus.Publish(r.Context(), targetID, n); err != nil {
		logger.Warn("failed to publish notification", logger.ErrorField(err))
	}
	writeJSON(w, http.StatusCreated, n)
}

// TrendingHandler serves the trending post feed through the cache.
func (h *APIHandler) TrendingHandler(w http.ResponseWriter, r *http.Request) {
	if docs, err := h.feed.GetTrending(r.Context()); err == nil && docs != nil {
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "cached": true})
		return
	}

	docs, err := h.docs.Query(r.Context(), gateway.Query{
		Collection: gateway.CollectionPosts,
		OrderBy:    "likes",
		Descending: true,
		Limit:      h.cfg.DefaultPageSize,
	})
	if err != nil {
		logger.Error("trending query failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if err := h.feed.SetTrending(r.Context(), docs); err != nil {
		logger.Warn("failed to cache trending feed", logger.ErrorField(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "cached": false})
}

func (h *APIHandler) invalidateTrending(r *http.Request) {
	if err := h.feed.Invalidate(r.Context()); err != nil {
		logger.Warn("failed to invalidate trending cache", logger.ErrorField(err))
	}
}
