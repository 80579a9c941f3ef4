package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memohai/filerelay/internal/files"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Uptime      int64  `json:"uptime"`
	FilesStored int    `json:"filesStored"`
	Timestamp   string `json:"timestamp"`
}

// HealthHandler serves /health and /ping for liveness.
type HealthHandler struct {
	store   files.Store
	started time.Time
	now     func() time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a health handler; uptime counts from construction.
func NewHealthHandler(log *slog.Logger, store files.Store) *HealthHandler {
	return &HealthHandler{
		store:   store,
		started: time.Now(),
		now:     time.Now,
		logger:  log.With(slog.String("handler", "health")),
	}
}

// Register mounts GET /health, HEAD /health and GET /ping.
func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
	e.GET("/ping", h.Ping)
}

// Health reports uptime in seconds and the number of stored files.
func (h *HealthHandler) Health(c echo.Context) error {
	count, err := h.store.Count(c.Request().Context())
	if err != nil {
		h.logger.Error("count files failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "health check failed")
	}
	now := h.now()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Uptime:      int64(now.Sub(h.started).Seconds()),
		FilesStored: count,
		Timestamp:   now.UTC().Format(time.RFC3339),
	})
}

// HealthHead returns 200 with no body.
func (h *HealthHandler) HealthHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Ping returns 200 JSON {"status":"ok"}.
func (h *HealthHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
