// Package s3 stores small files in an S3-compatible bucket and hands out presigned links.
package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/memohai/filerelay/internal/attachment"
	"github.com/memohai/filerelay/internal/storage"
)

// DefaultLinkTTL is the presigned link lifetime; S3 caps it at seven days.
const DefaultLinkTTL = 7 * 24 * time.Hour

// Config holds the bucket location and credentials.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PathStyle bool
	// Prefix is prepended to every object key.
	Prefix  string
	LinkTTL time.Duration
}

// Storage uploads files to a bucket with minio-go.
type Storage struct {
	cl      *minio.Client
	http    *http.Client
	bucket  string
	prefix  string
	linkTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

var _ storage.Backend = (*Storage)(nil)

// New creates a Storage. httpClient fetches source files; nil uses http.DefaultClient.
func New(log *slog.Logger, cfg Config, httpClient *http.Client) (*Storage, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("object storage endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("object storage bucket is required")
	}
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}
	cl, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	ttl := cfg.LinkTTL
	if ttl <= 0 || ttl > DefaultLinkTTL {
		ttl = DefaultLinkTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Storage{
		cl:      cl,
		http:    httpClient,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		linkTTL: ttl,
		logger:  log.With(slog.String("service", "object_storage")),
		now:     time.Now,
	}, nil
}

// Upload streams sourceURL into the bucket and presigns a download and a direct link.
func (s *Storage) Upload(ctx context.Context, sourceURL, name, mimeType string) (storage.Links, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return storage.Links{}, fmt.Errorf("build source request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return storage.Links{}, fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return storage.Links{}, fmt.Errorf("fetch source: unexpected status %d", resp.StatusCode)
	}

	name = sanitize(name)
	key := s.objectKey(name)
	// The chat file server reports every file as octet-stream.
	body, contentType, err := attachment.PrepareReaderAndMime(resp.Body, name, firstNonEmpty(mimeType, resp.Header.Get("Content-Type")))
	if err != nil {
		return storage.Links{}, fmt.Errorf("fetch source: %w", err)
	}
	info, err := s.cl.PutObject(ctx, s.bucket, key, body, resp.ContentLength, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return storage.Links{}, fmt.Errorf("put object: %w", err)
	}
	s.logger.Info("object stored",
		slog.String("key", key),
		slog.Int64("size", info.Size),
		slog.String("content_type", contentType),
	)
	return s.presign(ctx, key, name)
}

// Ping checks that the bucket exists.
func (s *Storage) Ping(ctx context.Context) error {
	ok, err := s.cl.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}

func (s *Storage) presign(ctx context.Context, key, name string) (storage.Links, error) {
	download, err := s.cl.PresignedGetObject(ctx, s.bucket, key, s.linkTTL, dispositionParams("attachment", name))
	if err != nil {
		return storage.Links{}, fmt.Errorf("presign download: %w", err)
	}
	direct, err := s.cl.PresignedGetObject(ctx, s.bucket, key, s.linkTTL, dispositionParams("inline", name))
	if err != nil {
		return storage.Links{}, fmt.Errorf("presign direct: %w", err)
	}
	return storage.Links{
		DownloadURL: download.String(),
		DirectURL:   direct.String(),
	}, nil
}

// objectKey places each upload under its own id so equal names never collide.
func (s *Storage) objectKey(name string) string {
	day := s.now().UTC().Format("2006/01/02")
	return path.Join(s.prefix, day, uuid.NewString(), name)
}

func dispositionParams(disposition, name string) url.Values {
	params := url.Values{}
	value := mime.FormatMediaType(disposition, map[string]string{"filename": name})
	if value == "" {
		value = disposition
	}
	params.Set("response-content-disposition", value)
	return params
}

func sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
