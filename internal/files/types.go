// Package files holds the metadata records of files served through the proxy.
package files

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for a token.
var ErrNotFound = errors.New("file not found")

// Record describes one large file accepted for proxied storage.
// Records are immutable once stored.
type Record struct {
	Token string `json:"token"`
	// ContentRef is the chat-side reference the token was derived from.
	ContentRef string `json:"content_ref"`
	// StoredRef is the reference inside the storage chat that the proxy resolves.
	StoredRef   string    `json:"stored_ref"`
	DisplayName string    `json:"display_name"`
	MimeType    string    `json:"mime_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store maps access tokens to records. Implementations own their synchronization.
type Store interface {
	// Put inserts the record or overwrites the one stored under the same token.
	Put(ctx context.Context, record Record) error
	// Get returns the record for token or ErrNotFound.
	Get(ctx context.Context, token string) (Record, error)
	// Count returns the number of live records.
	Count(ctx context.Context) (int, error)
}
