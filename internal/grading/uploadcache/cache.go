// Package uploadcache deduplicates provider file uploads. Identical bytes
// with the same MIME type map to one cached remote handle, keyed by content
// hash so renames and re-submissions never trigger a second upload.
package uploadcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DefaultTTL sits under the provider's 48h file retention so a cached handle
// is never returned after the remote copy has been garbage collected.
const DefaultTTL = 47 * time.Hour

// Entry is a cached remote file handle.
type Entry struct {
	FileURI  string    `json:"file_uri"`
	FileName string    `json:"file_name"`
	MimeType string    `json:"mime_type"`
	StoredAt time.Time `json:"stored_at"`
}

// Cache lookups and stores are best-effort: callers treat a miss and a
// failure identically and re-upload.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
}

// Key derives the cache key for a payload. Same bytes under a different MIME
// type produce a different key since the provider treats them as distinct
// files.
func Key(data []byte, mimeType string) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) + ":" + mimeType
}
