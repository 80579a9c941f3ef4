package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type recordingSubmitter struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
	err     error
}

func (r *recordingSubmitter) Submit(ctx context.Context, update tgbotapi.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
	return r.err
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

const updateJSON = `{"update_id":10,"message":{"message_id":1,"date":1,"chat":{"id":7,"type":"private"},"text":"hi"}}`

func postUpdate(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{}
	h := NewWebhookHandler(slog.Default(), "abc123", sub)
	for _, path := range []string{"/webhook/wrongsecret", "/webhook/abc1234", "/webhook/ABC123", "/webhook/"} {
		rec := serve(t, h, postUpdate(path, updateJSON))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	if sub.count() != 0 {
		t.Fatalf("no update should be queued on secret mismatch")
	}
}

func TestWebhookAcceptsMatchingSecret(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{}
	h := NewWebhookHandler(slog.Default(), "abc123", sub)
	rec := serve(t, h, postUpdate("/webhook/abc123", updateJSON))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if sub.count() != 1 || sub.updates[0].UpdateID != 10 || sub.updates[0].Message.Text != "hi" {
		t.Fatalf("unexpected queued updates %+v", sub.updates)
	}
}

func TestWebhookQueueFullStillAcknowledges(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler(slog.Default(), "abc123", &recordingSubmitter{err: errors.New("update queue full")})
	rec := serve(t, h, postUpdate("/webhook/abc123", updateJSON))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{}
	h := NewWebhookHandler(slog.Default(), "abc123", sub)
	rec := serve(t, h, postUpdate("/webhook/abc123", "{not json"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if sub.count() != 0 {
		t.Fatalf("malformed update should not be queued")
	}
}

func TestWebhookDisabledWithoutSecret(t *testing.T) {
	t.Parallel()

	sub := &recordingSubmitter{}
	h := NewWebhookHandler(slog.Default(), "", sub)
	for _, path := range []string{"/webhook/", "/webhook/anything"} {
		rec := serve(t, h, postUpdate(path, updateJSON))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	if sub.count() != 0 {
		t.Fatalf("no update should be queued when the webhook is disabled")
	}
}
