package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrUnmanagedURL is returned when asked to delete an asset the backend did not store.
var ErrUnmanagedURL = errors.New("asset url is not managed by this storage")

// AssetStorage stores uploaded media (audio and cover art) and serves it by URL.
type AssetStorage interface {
	// Upload stores the content of r under folder/fileName and returns its public URL.
	// Nothing is visible at the returned URL until the write has completed.
	Upload(ctx context.Context, r io.Reader, folder, fileName string) (string, error)
	// Delete removes the asset behind fileURL. Deleting a missing asset is not an error.
	Delete(ctx context.Context, fileURL string) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// GenerateFileName returns a collision-free name that keeps the original extension.
func GenerateFileName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "." {
		ext = ""
	}
	stem := base[:len(base)-len(filepath.Ext(base))]
	stem = strings.Trim(unsafeChars.ReplaceAllString(stem, "_"), "_.")
	if len(stem) > 40 {
		stem = stem[:40]
	}
	if stem == "" || stem == "." {
		return uuid.NewString() + ext
	}
	return uuid.NewString() + "_" + stem + ext
}

// NormalizeURL rewrites legacy stored paths ("uploads/x.mp3", "/srv/app/uploads/x.mp3",
// "x.mp3") into the public form "<prefix>/x.mp3". Absolute http(s) URLs and values
// already under prefix are returned unchanged.
func NormalizeURL(prefix, raw string) string {
	if raw == "" {
		return raw
	}
	prefix = "/" + strings.Trim(prefix, "/")
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}

	clean := strings.ReplaceAll(raw, "\\", "/")
	if strings.HasPrefix(clean, prefix+"/") {
		return clean
	}

	marker := strings.Trim(prefix, "/") + "/"
	if idx := strings.LastIndex(clean, marker); idx >= 0 {
		return prefix + "/" + clean[idx+len(marker):]
	}
	return prefix + "/" + strings.TrimLeft(clean[strings.LastIndex(clean, "/")+1:], "/")
}
