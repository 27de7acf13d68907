package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// UploadKind selects the validation rules for an upload.
type UploadKind int

const (
	UploadAudio UploadKind = iota
	UploadVideo
	UploadImage
)

var allowedExtensions = map[UploadKind]map[string]string{
	UploadAudio: {
		".mp3":  "audio/mpeg",
		".m4a":  "audio/mp4",
		".flac": "audio/flac",
		".wav":  "audio/wav",
		".ogg":  "audio/ogg",
	},
	UploadVideo: {
		".mp4":  "video/mp4",
		".webm": "video/webm",
		".mov":  "video/quicktime",
	},
	UploadImage: {
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
	},
}

// ValidateUpload checks a file's name and size before any store mutation
// or network call happens. It returns the content type to upload with.
func ValidateUpload(kind UploadKind, filename string, size, maxSize int64) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("file %q is empty", filename)
	}
	if size > maxSize {
		return "", fmt.Errorf("file %q is %d bytes, limit is %d", filename, size, maxSize)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := allowedExtensions[kind][ext]
	if !ok {
		return "", fmt.Errorf("file type %q is not allowed", ext)
	}
	return contentType, nil
}
