// Package proxy relays proxied files from the chat backend to HTTP clients.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/memohai/filerelay/internal/attachment"
	"github.com/memohai/filerelay/internal/files"
)

var (
	// ErrNotFound is returned for tokens without a record.
	ErrNotFound = errors.New("file not found")
	// ErrUpstream is returned when the content cannot be resolved or fetched.
	ErrUpstream = errors.New("upstream failure")
)

// Disposition selects how clients should present the body.
type Disposition string

const (
	DispositionInline     Disposition = "inline"
	DispositionAttachment Disposition = "attachment"
)

// Resolver turns a stored reference into a fetchable URL.
type Resolver interface {
	ResolveStoredRef(ctx context.Context, storedRef string) (string, error)
}

// Stream is an open upstream body plus the metadata needed to relay it.
// Callers must close Body.
type Stream struct {
	Body          io.ReadCloser
	Name          string
	ContentType   string
	ContentLength int64
	ContentRange  string
	AcceptRanges  string
	Status        int
	Disposition   Disposition
}

// Service opens upstream streams for tokens.
type Service struct {
	store          files.Store
	resolver       Resolver
	client         *http.Client
	resolveTimeout time.Duration
	logger         *slog.Logger
}

// NewService creates a proxy. client should bound response header time; nil uses http.DefaultClient.
func NewService(log *slog.Logger, store files.Store, resolver Resolver, client *http.Client, resolveTimeout time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Service{
		store:          store,
		resolver:       resolver,
		client:         client,
		resolveTimeout: resolveTimeout,
		logger:         log.With(slog.String("service", "proxy")),
	}
}

// Stream opens the file for inline rendering. byteRange is an optional HTTP Range value.
func (s *Service) Stream(ctx context.Context, token, byteRange string) (Stream, error) {
	return s.open(ctx, token, byteRange, DispositionInline)
}

// Download opens the file as an attachment. byteRange is an optional HTTP Range value.
func (s *Service) Download(ctx context.Context, token, byteRange string) (Stream, error) {
	return s.open(ctx, token, byteRange, DispositionAttachment)
}

func (s *Service) open(ctx context.Context, token, byteRange string, disposition Disposition) (Stream, error) {
	record, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			return Stream{}, ErrNotFound
		}
		return Stream{}, fmt.Errorf("lookup record: %w", err)
	}

	resolveCtx := ctx
	if s.resolveTimeout > 0 {
		var cancel context.CancelFunc
		resolveCtx, cancel = context.WithTimeout(ctx, s.resolveTimeout)
		defer cancel()
	}
	source, err := s.resolver.ResolveStoredRef(resolveCtx, record.StoredRef)
	if err != nil {
		return Stream{}, fmt.Errorf("%w: resolve: %w", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return Stream{}, fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	if byteRange = strings.TrimSpace(byteRange); byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Stream{}, fmt.Errorf("%w: fetch: %w", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		_ = resp.Body.Close()
		s.logger.Warn("upstream rejected fetch", slog.String("token", token), slog.Int("status", resp.StatusCode))
		return Stream{}, fmt.Errorf("%w: fetch: unexpected status %d", ErrUpstream, resp.StatusCode)
	}

	contentType := attachment.Resolve(record.DisplayName, record.MimeType, resp.Header.Get("Content-Type"))
	s.logger.Debug("relaying file", slog.String("token", token), slog.Int("status", resp.StatusCode), slog.String("disposition", string(disposition)))
	return Stream{
		Body:          resp.Body,
		Name:          record.DisplayName,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
		AcceptRanges:  resp.Header.Get("Accept-Ranges"),
		Status:        resp.StatusCode,
		Disposition:   disposition,
	}, nil
}
