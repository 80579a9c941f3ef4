package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/filerelay/internal/ingest"
)

const testToken = "123:abc"

type fakeBotAPI struct {
	mu     sync.Mutex
	calls  map[string][]map[string]string
	result map[string]any
}

func newFakeBotAPI(t *testing.T) (*fakeBotAPI, *httptest.Server) {
	t.Helper()
	f := &fakeBotAPI{
		calls: map[string][]map[string]string{},
		result: map[string]any{
			"getMe":   map[string]any{"id": 1, "is_bot": true, "first_name": "Relay", "username": "relay_bot"},
			"getFile": map[string]any{"file_id": "f1", "file_unique_id": "u1", "file_size": 1234, "file_path": "documents/file_1.pdf"},
			"forwardMessage": map[string]any{
				"message_id": 900,
				"date":       1,
				"chat":       map[string]any{"id": -100, "type": "channel"},
				"document":   map[string]any{"file_id": "stored-f1", "file_unique_id": "u1", "file_name": "a.pdf", "file_size": 1234},
			},
			"sendMessage":     map[string]any{"message_id": 42, "date": 1, "chat": map[string]any{"id": 7, "type": "private"}},
			"editMessageText": map[string]any{"message_id": 42, "date": 1, "chat": map[string]any{"id": 7, "type": "private"}},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if !strings.HasPrefix(r.URL.Path, "/bot"+testToken+"/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = r.ParseForm()
		params := map[string]string{}
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.calls[method] = append(f.calls[method], params)
		result, ok := f.result[method]
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": "Bad Request: " + method})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeBotAPI) callsTo(method string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.calls[method]...)
}

func newTestClient(t *testing.T, srv *httptest.Server, storageChat int64) *Client {
	t.Helper()
	c, err := New(nil, Config{
		BotToken:      testToken,
		APIEndpoint:   srv.URL + "/bot%s/%s",
		FileEndpoint:  srv.URL + "/file/bot%s/%s",
		StorageChatID: storageChat,
		SendRate:      1000,
	}, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewVerifiesToken(t *testing.T) {
	t.Parallel()

	f, srv := newFakeBotAPI(t)
	c := newTestClient(t, srv, 0)
	if c.Username() != "relay_bot" {
		t.Fatalf("unexpected username %q", c.Username())
	}
	if len(f.callsTo("getMe")) != 1 {
		t.Fatalf("expected one getMe call")
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, Config{}, nil); err == nil {
		t.Fatal("expected error for missing token")
	}
	if _, err := New(nil, Config{BotToken: "x", FileEndpoint: "https://example.com/%s"}, nil); err == nil {
		t.Fatal("expected error for malformed file endpoint")
	}
}

func TestFileSizeAndLink(t *testing.T) {
	t.Parallel()

	f, srv := newFakeBotAPI(t)
	c := newTestClient(t, srv, 0)

	size, err := c.FileSize(context.Background(), "f1")
	if err != nil {
		t.Fatalf("file size: %v", err)
	}
	if size != 1234 {
		t.Fatalf("expected 1234, got %d", size)
	}
	link, err := c.ResolveStoredRef(context.Background(), "f1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := srv.URL + "/file/bot" + testToken + "/documents/file_1.pdf"; link != want {
		t.Fatalf("expected %q, got %q", want, link)
	}
	calls := f.callsTo("getFile")
	if len(calls) != 2 || calls[0]["file_id"] != "f1" {
		t.Fatalf("unexpected getFile calls: %#v", calls)
	}
}

func TestFileLinkReportsAPIErrors(t *testing.T) {
	t.Parallel()

	f, srv := newFakeBotAPI(t)
	f.mu.Lock()
	delete(f.result, "getFile")
	f.mu.Unlock()
	c := newTestClient(t, srv, 0)

	_, err := c.FileLink(context.Background(), "f1")
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != 400 {
		t.Fatalf("expected bot api error, got %v", err)
	}
	if _, err := c.FileSize(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty file id")
	}
}

func TestForwardToStorage(t *testing.T) {
	t.Parallel()

	f, srv := newFakeBotAPI(t)
	c := newTestClient(t, srv, -100)

	stored, err := c.ForwardToStorage(context.Background(), "f1", ingest.Origin{ChatID: 7, MessageID: 3})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if stored != "stored-f1" {
		t.Fatalf("expected stored-f1, got %q", stored)
	}
	calls := f.callsTo("forwardMessage")
	if len(calls) != 1 || calls[0]["chat_id"] != "-100" || calls[0]["from_chat_id"] != "7" || calls[0]["message_id"] != "3" {
		t.Fatalf("unexpected forward params: %#v", calls)
	}
}

func TestForwardWithoutStorageChatKeepsRef(t *testing.T) {
	t.Parallel()

	f, srv := newFakeBotAPI(t)
	c := newTestClient(t, srv, 0)

	stored, err := c.ForwardToStorage(context.Background(), "f1", ingest.Origin{ChatID: 7, MessageID: 3})
	if err != nil || stored != "f1" {
		t.Fatalf("expected ref unchanged, got %q %v", stored, err)
	}
	if len(f.callsTo("forwardMessage")) != 0 {
		t.Fatal("no forward expected without a storage chat")
	}
}

func TestReplyAndEdit(t *testing.T) {
	t.Parallel()

	f, srv := newFakeBotAPI(t)
	c := newTestClient(t, srv, 0)

	id, err := c.Reply(context.Background(), 7, 5, "Processing…")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected message id 42, got %d", id)
	}
	if err := c.Edit(context.Background(), 7, id, "done"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	sent := f.callsTo("sendMessage")
	if len(sent) != 1 || sent[0]["reply_to_message_id"] != "5" || sent[0]["text"] != "Processing…" {
		t.Fatalf("unexpected sendMessage params: %#v", sent)
	}
	edits := f.callsTo("editMessageText")
	if len(edits) != 1 || edits[0]["message_id"] != "42" || edits[0]["text"] != "done" {
		t.Fatalf("unexpected editMessageText params: %#v", edits)
	}
}

func TestCallHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := make(chan struct{})
	defer close(block)
	_, err := call(ctx, func() (int, error) {
		<-block
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
