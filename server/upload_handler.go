package server

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"vasilala/logger"
	"vasilala/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// uploadKindFromString maps the {kind} path var to a validation kind.
func uploadKindFromString(s string) (storage.UploadKind, string, bool) {
	switch s {
	case "audio":
		return storage.UploadAudio, "audio", true
	case "video":
		return storage.UploadVideo, "video", true
	case "image":
		return storage.UploadImage, "images", true
	default:
		return 0, "", false
	}
}

// UploadHandler accepts a multipart file upload, validates it, streams
// it into object storage, and returns the public URL.
//
// Expected form field: "file".
func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	kind, prefix, ok := uploadKindFromString(mux.Vars(r)["kind"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown upload kind")
		return
	}

	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' in form")
		return
	}
	defer file.Close()

	maxSize := h.cfg.MaxUploadBytes
	if kind == storage.UploadImage {
		maxSize = h.cfg.MaxImageBytes
	}
	contentType, err := storage.ValidateUpload(kind, header.Filename, header.Size, maxSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ext := strings.ToLower(path.Ext(header.Filename))
	key := fmt.Sprintf("%s/%s/%s%s", prefix, userID, uuid.New().String(), ext)

	url, err := h.objects.Upload(r.Context(), key, file, header.Size, contentType, nil)
	if err != nil {
		logger.Error("upload failed",
			logger.String("key", key),
			logger.Int64("size", header.Size),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	logger.Info("upload complete",
		logger.String("key", key),
		logger.String("user", userID),
		logger.Int64("size", header.Size))
	writeJSON(w, http.StatusCreated, map[string]string{"key": key, "url": url})
}

// ServeObjectHandler streams an object from storage, for deployments
// where the object store is not directly reachable.
func (h *APIHandler) ServeObjectHandler(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/media/")
	if key == "" || strings.Contains(key, "..") {
		writeError(w, http.StatusBadRequest, "invalid object key")
		return
	}

	object, err := h.objects.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "object not found")
		return
	}
	defer object.Close()

	if contentType := contentTypeForKey(key); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	if _, err := io.Copy(w, object); err != nil {
		logger.Warn("error streaming object", logger.String("key", key), logger.ErrorField(err))
	}
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
