// Package storage defines the object storage backend used for small files.
package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no object storage backend is configured.
var ErrNotConfigured = errors.New("object storage not configured")

// Links are the externally reachable addresses of an uploaded object.
type Links struct {
	// DownloadURL serves the object as an attachment.
	DownloadURL string `json:"download_url"`
	// DirectURL serves the object inline.
	DirectURL string `json:"direct_url"`
}

// Uploader copies a remote file into object storage.
type Uploader interface {
	// Upload fetches sourceURL and stores it under name, returning share links.
	// mimeType is the type declared by the sender and may be empty.
	Upload(ctx context.Context, sourceURL, name, mimeType string) (Links, error)
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is an object store that can upload and report reachability.
type Backend interface {
	Uploader
	Pinger
}

// Unconfigured is an Uploader that always fails with ErrNotConfigured.
type Unconfigured struct{}

// Upload implements Uploader.
func (Unconfigured) Upload(context.Context, string, string, string) (Links, error) {
	return Links{}, ErrNotConfigured
}

// Ping implements Pinger.
func (Unconfigured) Ping(context.Context) error {
	return ErrNotConfigured
}
