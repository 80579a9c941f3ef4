package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/memohai/filerelay/internal/files"
	"github.com/memohai/filerelay/internal/routing"
	"github.com/memohai/filerelay/internal/storage"
	"github.com/memohai/filerelay/internal/token"
)

// Config holds the orchestrator settings resolved at startup.
type Config struct {
	Threshold   int64
	MaxFileSize int64
	Secret      string
	// BaseURL prefixes the /stream and /download links.
	BaseURL        string
	ChatTimeout    time.Duration
	StorageTimeout time.Duration
}

// Orchestrator turns file events into access URLs.
type Orchestrator struct {
	cfg     Config
	chat    ChatProtocol
	objects storage.Uploader
	store   files.Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator. objects may be nil when object storage is disabled.
func NewOrchestrator(log *slog.Logger, cfg Config, chat ChatProtocol, objects storage.Uploader, store files.Store) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if objects == nil {
		objects = storage.Unconfigured{}
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = routing.DefaultThreshold
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &Orchestrator{
		cfg:     cfg,
		chat:    chat,
		objects: objects,
		store:   store,
		logger:  log.With(slog.String("service", "ingest")),
		now:     time.Now,
	}
}

// Threshold returns the routing threshold in bytes.
func (o *Orchestrator) Threshold() int64 {
	return o.cfg.Threshold
}

// MaxFileSize returns the largest accepted file size; zero means unlimited.
func (o *Orchestrator) MaxFileSize() int64 {
	return o.cfg.MaxFileSize
}

// Ingest resolves the size of the file, picks a route and stores it.
// Nothing is written to the store unless the proxied path completes.
func (o *Orchestrator) Ingest(ctx context.Context, ev Event) (Result, error) {
	ref := strings.TrimSpace(ev.ContentRef)
	if ref == "" {
		return Result{}, ErrInvalidEvent
	}
	name := strings.TrimSpace(ev.Name)
	if name == "" {
		name = ref
	}

	size, err := o.resolveSize(ctx, ref, ev.Size)
	if err != nil {
		return Result{}, err
	}
	if o.cfg.MaxFileSize > 0 && size > o.cfg.MaxFileSize {
		return Result{}, fmt.Errorf("%w: %s exceeds %s", ErrFileTooLarge,
			routing.FormatSize(size), routing.FormatSize(o.cfg.MaxFileSize))
	}

	route := routing.Decide(size, o.cfg.Threshold)
	log := o.logger.With(
		slog.String("route", route.String()),
		slog.Int64("owner_id", ev.OwnerID),
		slog.Int64("size", size),
	)

	var result Result
	switch route {
	case routing.DirectTransfer:
		result, err = o.transfer(ctx, ref, name, strings.TrimSpace(ev.MimeType))
	default:
		result, err = o.proxy(ctx, ev, ref, name, size)
	}
	if err != nil {
		log.Warn("ingest failed", slog.Any("error", err))
		return Result{}, err
	}
	result.Route = route
	result.Name = name
	result.Size = size
	log.Info("ingest completed")
	return result, nil
}

func (o *Orchestrator) resolveSize(ctx context.Context, ref string, reported int64) (int64, error) {
	if reported > 0 {
		return reported, nil
	}
	callCtx, cancel := withTimeout(ctx, o.cfg.ChatTimeout)
	defer cancel()
	size, err := o.chat.FileSize(callCtx, ref)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSizeUnknown, err)
	}
	if size <= 0 {
		return 0, ErrSizeUnknown
	}
	return size, nil
}

func (o *Orchestrator) transfer(ctx context.Context, ref, name, mimeType string) (Result, error) {
	linkCtx, cancel := withTimeout(ctx, o.cfg.ChatTimeout)
	source, err := o.chat.FileLink(linkCtx, ref)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("%w: resolve file link: %w", ErrUpstream, err)
	}

	uploadCtx, cancel := withTimeout(ctx, o.cfg.StorageTimeout)
	defer cancel()
	links, err := o.objects.Upload(uploadCtx, source, name, mimeType)
	if err != nil {
		return Result{}, fmt.Errorf("%w: upload: %w", ErrUpstream, err)
	}
	return Result{Links: links}, nil
}

func (o *Orchestrator) proxy(ctx context.Context, ev Event, ref, name string, size int64) (Result, error) {
	callCtx, cancel := withTimeout(ctx, o.cfg.ChatTimeout)
	storedRef, err := o.chat.ForwardToStorage(callCtx, ref, ev.Origin)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("%w: forward to storage: %w", ErrUpstream, err)
	}
	if strings.TrimSpace(storedRef) == "" {
		storedRef = ref
	}

	tok := token.Derive(ref, ev.OwnerID, o.cfg.Secret)
	record := files.Record{
		Token:       tok,
		ContentRef:  ref,
		StoredRef:   storedRef,
		DisplayName: name,
		MimeType:    strings.TrimSpace(ev.MimeType),
		SizeBytes:   size,
		OwnerID:     ev.OwnerID,
		CreatedAt:   o.now().UTC(),
	}
	if err := o.store.Put(ctx, record); err != nil {
		return Result{}, fmt.Errorf("store record: %w", err)
	}
	return Result{
		Token:       tok,
		StreamURL:   o.cfg.BaseURL + "/stream/" + tok,
		DownloadURL: o.cfg.BaseURL + "/download/" + tok,
	}, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
