package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/memohai/filerelay/internal/files"
)

type staticResolver struct {
	url   string
	err   error
	calls int
}

func (r *staticResolver) ResolveStoredRef(ctx context.Context, storedRef string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.url + "/" + storedRef, nil
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	payload := strings.Repeat("0123456789", 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-upstream")
		w.Header().Set("Accept-Ranges", "bytes")
		if r.Header.Get("Range") == "bytes=0-9" {
			w.Header().Set("Content-Range", "bytes 0-9/1000")
			w.WriteHeader(http.StatusPartialContent)
			_, _ = io.WriteString(w, payload[:10])
			return
		}
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func seededStore(t *testing.T, records ...files.Record) files.Store {
	t.Helper()
	store := files.NewMemoryStore()
	for _, r := range records {
		if err := store.Put(context.Background(), r); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	return store
}

func TestStreamAndDownloadRelayBody(t *testing.T) {
	t.Parallel()

	upstream := newUpstream(t)
	store := seededStore(t, files.Record{Token: "tok", StoredRef: "stored", DisplayName: "clip.mp4", MimeType: "video/mp4"})
	svc := NewService(nil, store, &staticResolver{url: upstream.URL}, upstream.Client(), 0)

	stream, err := svc.Stream(context.Background(), "tok", "")
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	defer stream.Body.Close()
	body, _ := io.ReadAll(stream.Body)
	if len(body) != 1000 {
		t.Fatalf("expected 1000 bytes, got %d", len(body))
	}
	if stream.Disposition != DispositionInline || stream.Name != "clip.mp4" || stream.ContentType != "video/mp4" {
		t.Fatalf("unexpected stream metadata: %+v", stream)
	}

	download, err := svc.Download(context.Background(), "tok", "")
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	defer download.Body.Close()
	if download.Disposition != DispositionAttachment || download.Status != http.StatusOK {
		t.Fatalf("unexpected download metadata: %+v", download)
	}
}

func TestStreamPassesRange(t *testing.T) {
	t.Parallel()

	upstream := newUpstream(t)
	store := seededStore(t, files.Record{Token: "tok", StoredRef: "stored", DisplayName: "a.bin"})
	svc := NewService(nil, store, &staticResolver{url: upstream.URL}, upstream.Client(), 0)

	stream, err := svc.Stream(context.Background(), "tok", "bytes=0-9")
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	defer stream.Body.Close()
	if stream.Status != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", stream.Status)
	}
	if stream.ContentRange != "bytes 0-9/1000" {
		t.Fatalf("unexpected content range %q", stream.ContentRange)
	}
	if stream.ContentType != "application/x-upstream" {
		t.Fatalf("expected upstream content type fallback, got %q", stream.ContentType)
	}
}

func TestUnknownTokenIsNotFound(t *testing.T) {
	t.Parallel()

	resolver := &staticResolver{url: "http://unused"}
	svc := NewService(nil, files.NewMemoryStore(), resolver, nil, 0)
	for _, tok := range []string{"deadbeef", "", "../etc"} {
		_, err := svc.Stream(context.Background(), tok, "")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %q, got %v", tok, err)
		}
		if errors.Is(err, ErrUpstream) {
			t.Fatalf("unknown token must not be an upstream error")
		}
	}
	if resolver.calls != 0 {
		t.Fatalf("resolver should not be called for unknown tokens")
	}
}

func TestUpstreamFailures(t *testing.T) {
	t.Parallel()

	upstream := newUpstream(t)
	tests := []struct {
		name     string
		record   files.Record
		resolver *staticResolver
	}{
		{"resolve", files.Record{Token: "tok", StoredRef: "stored"}, &staticResolver{err: errors.New("file not found")}},
		{"status", files.Record{Token: "tok", StoredRef: "missing"}, &staticResolver{url: upstream.URL}},
		{"transport", files.Record{Token: "tok", StoredRef: "x"}, &staticResolver{url: "http://127.0.0.1:1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(nil, seededStore(t, tt.record), tt.resolver, upstream.Client(), 0)
			_, err := svc.Download(context.Background(), "tok", "")
			if !errors.Is(err, ErrUpstream) {
				t.Fatalf("expected ErrUpstream, got %v", err)
			}
		})
	}
}
