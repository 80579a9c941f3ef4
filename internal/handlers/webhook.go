package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
)

const maxUpdateBytes = 1 << 20

// UpdateSubmitter queues updates for asynchronous processing.
type UpdateSubmitter interface {
	Submit(ctx context.Context, update tgbotapi.Update) error
}

// WebhookHandler accepts Bot API updates on a secret path.
type WebhookHandler struct {
	secret    string
	submitter UpdateSubmitter
	logger    *slog.Logger
}

// NewWebhookHandler creates a webhook handler. With an empty secret no route is registered.
func NewWebhookHandler(log *slog.Logger, secret string, submitter UpdateSubmitter) *WebhookHandler {
	return &WebhookHandler{
		secret:    secret,
		submitter: submitter,
		logger:    log.With(slog.String("handler", "webhook")),
	}
}

// Register mounts POST /webhook/:secret.
func (h *WebhookHandler) Register(e *echo.Echo) {
	if h.secret == "" {
		h.logger.Warn("webhook secret not configured, webhook disabled")
		return
	}
	e.POST("/webhook/:secret", h.Receive)
}

// Receive queues the update and answers before it is processed.
func (h *WebhookHandler) Receive(c echo.Context) error {
	if subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(h.secret)) != 1 {
		return echo.ErrNotFound
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(c.Request().Body, maxUpdateBytes)).Decode(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid update")
	}
	if err := h.submitter.Submit(c.Request().Context(), update); err != nil {
		h.logger.Warn("update not queued", slog.Int("update_id", update.UpdateID), slog.Any("error", err))
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
