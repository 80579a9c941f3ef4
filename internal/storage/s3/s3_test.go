package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(nil, Config{
		Endpoint:  "127.0.0.1:9000",
		Region:    "us-east-1",
		Bucket:    "relay",
		AccessKey: "access",
		SecretKey: "secret",
		PathStyle: true,
		Prefix:    "/uploads/",
	}, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestNewRequiresEndpointAndBucket(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"}, nil)
	assert.Error(t, err)
	_, err = New(nil, Config{Endpoint: "127.0.0.1:9000"}, nil)
	assert.Error(t, err)
}

func TestPresignLinksCarryDisposition(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	links, err := s.presign(context.Background(), "uploads/k/report.pdf", "report.pdf")
	require.NoError(t, err)

	download, err := url.Parse(links.DownloadURL)
	require.NoError(t, err)
	direct, err := url.Parse(links.DirectURL)
	require.NoError(t, err)

	assert.Equal(t, "/relay/uploads/k/report.pdf", download.Path)
	assert.Equal(t, "attachment; filename=report.pdf", download.Query().Get("response-content-disposition"))
	assert.Equal(t, "inline; filename=report.pdf", direct.Query().Get("response-content-disposition"))
	assert.Equal(t, "604800", download.Query().Get("X-Amz-Expires"))
}

func TestObjectKeyLayout(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	key := s.objectKey("a.txt")
	assert.True(t, strings.HasPrefix(key, "uploads/2026/03/04/"), key)
	assert.True(t, strings.HasSuffix(key, "/a.txt"), key)
	assert.NotEqual(t, key, s.objectKey("a.txt"))
}

func TestUploadFailsOnSourceError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	s := newTestStorage(t)
	_, err := s.Upload(context.Background(), srv.URL+"/file", "a.txt", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"report.pdf":        "report.pdf",
		"../../etc/passwd":  "passwd",
		`C:\Users\me\a.doc`: "a.doc",
		"":                  "file",
		"..":                "file",
		"bad\x00name.txt":   "badname.txt",
	}
	for input, want := range tests {
		assert.Equal(t, want, sanitize(input), "input %q", input)
	}
}

type fakeS3 struct {
	mu          sync.Mutex
	putPath     string
	contentType string
}

func newFakeS3(t *testing.T, source string) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/source":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Length", strconv.Itoa(len(source)))
			_, _ = io.WriteString(w, source)
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/relay/"):
			_, _ = io.Copy(io.Discard, r.Body)
			f.mu.Lock()
			f.putPath = r.URL.Path
			f.contentType = r.Header.Get("Content-Type")
			f.mu.Unlock()
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodHead && strings.HasPrefix(r.URL.Path, "/relay"):
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func storageFor(t *testing.T, srv *httptest.Server) *Storage {
	t.Helper()
	s, err := New(nil, Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Region:    "us-east-1",
		Bucket:    "relay",
		AccessKey: "access",
		SecretKey: "secret",
		PathStyle: true,
		Prefix:    "uploads",
	}, srv.Client())
	require.NoError(t, err)
	return s
}

func TestUploadSniffsContentType(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeS3(t, "%PDF-1.4\n"+strings.Repeat("0", 2048))
	s := storageFor(t, srv)

	links, err := s.Upload(context.Background(), srv.URL+"/source", "report", "")
	require.NoError(t, err)
	assert.NotEmpty(t, links.DownloadURL)
	assert.NotEmpty(t, links.DirectURL)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.True(t, strings.HasPrefix(fake.putPath, "/relay/uploads/"), fake.putPath)
	assert.True(t, strings.HasSuffix(fake.putPath, "/report"), fake.putPath)
	assert.Equal(t, "application/pdf", fake.contentType)
}

func TestUploadKeepsDeclaredMime(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeS3(t, strings.Repeat("a", 600))
	s := storageFor(t, srv)

	_, err := s.Upload(context.Background(), srv.URL+"/source", "movie.mkv", "video/x-matroska")
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "video/x-matroska", fake.contentType)
}

func TestPing(t *testing.T) {
	t.Parallel()

	_, srv := newFakeS3(t, "")
	require.NoError(t, storageFor(t, srv).Ping(context.Background()))
}
