// Package ingest routes inbound files to object storage or the proxied chat store.
package ingest

import (
	"context"
	"errors"

	"github.com/memohai/filerelay/internal/routing"
	"github.com/memohai/filerelay/internal/storage"
)

var (
	// ErrSizeUnknown is returned when the file size is zero or cannot be obtained.
	ErrSizeUnknown = errors.New("file size unknown")
	// ErrFileTooLarge is returned when the file exceeds the configured maximum.
	ErrFileTooLarge = errors.New("file too large")
	// ErrUpstream wraps failures reported by a collaborator.
	ErrUpstream = errors.New("upstream failure")
	// ErrInvalidEvent is returned when the event carries no content reference.
	ErrInvalidEvent = errors.New("invalid file event")
)

// Origin locates the chat message that carried the file.
type Origin struct {
	ChatID    int64
	MessageID int
}

// Event is one inbound file.
type Event struct {
	ContentRef string
	Name       string
	MimeType   string
	OwnerID    int64
	// Size is the size reported with the event; zero means unknown.
	Size   int64
	Origin Origin
}

// Result describes a successful ingest.
type Result struct {
	Route routing.Route `json:"route"`
	Name  string        `json:"name"`
	Size  int64         `json:"size"`

	// Links is set for DirectTransfer.
	Links storage.Links `json:"links,omitempty"`

	// Token, StreamURL and DownloadURL are set for ProxiedStorage.
	Token       string `json:"token,omitempty"`
	StreamURL   string `json:"stream_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// ChatProtocol is the chat backend that owns file content.
type ChatProtocol interface {
	// FileSize returns the size of the referenced file in bytes.
	FileSize(ctx context.Context, ref string) (int64, error)
	// FileLink returns a fetchable URL for the referenced file.
	FileLink(ctx context.Context, ref string) (string, error)
	// ForwardToStorage copies the message at origin into the storage chat and
	// returns the reference of the stored copy.
	ForwardToStorage(ctx context.Context, ref string, origin Origin) (string, error)
}
