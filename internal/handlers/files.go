package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memohai/filerelay/internal/logger"
	"github.com/memohai/filerelay/internal/proxy"
)

// FileOpener opens proxied files by token.
type FileOpener interface {
	Stream(ctx context.Context, token, byteRange string) (proxy.Stream, error)
	Download(ctx context.Context, token, byteRange string) (proxy.Stream, error)
}

// FilesHandler serves proxied files by access token.
type FilesHandler struct {
	opener FileOpener
	logger *slog.Logger
}

// NewFilesHandler creates a files handler.
func NewFilesHandler(log *slog.Logger, opener FileOpener) *FilesHandler {
	return &FilesHandler{
		opener: opener,
		logger: log.With(slog.String("handler", "files")),
	}
}

// Register mounts GET /stream/:token and GET /download/:token.
func (h *FilesHandler) Register(e *echo.Echo) {
	e.GET("/stream/:token", h.Stream)
	e.GET("/download/:token", h.Download)
}

// Stream serves the file inline.
func (h *FilesHandler) Stream(c echo.Context) error {
	return h.serve(c, h.opener.Stream)
}

// Download serves the file as an attachment.
func (h *FilesHandler) Download(c echo.Context) error {
	return h.serve(c, h.opener.Download)
}

func (h *FilesHandler) serve(c echo.Context, open func(context.Context, string, string) (proxy.Stream, error)) error {
	token := strings.TrimSpace(c.Param("token"))
	st, err := open(c.Request().Context(), token, c.Request().Header.Get("Range"))
	if err != nil {
		if errors.Is(err, proxy.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "file not found")
		}
		logger.FromContext(c.Request().Context()).Error("open file failed",
			slog.String("handler", "files"), slog.Any("error", err))
		if errors.Is(err, proxy.ErrUpstream) {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch file")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	defer st.Body.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, st.ContentType)
	header.Set("Cache-Control", "private, max-age=86400")
	header.Set(echo.HeaderContentDisposition, contentDisposition(st.Disposition, st.Name))
	if st.ContentLength >= 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(st.ContentLength, 10))
	}
	if st.ContentRange != "" {
		header.Set("Content-Range", st.ContentRange)
	}
	if st.AcceptRanges != "" {
		header.Set("Accept-Ranges", st.AcceptRanges)
	}
	c.Response().WriteHeader(st.Status)
	if _, err := io.Copy(c.Response().Writer, st.Body); err != nil {
		h.logger.Warn("relay file stream failed", slog.Any("error", err))
	}
	return nil
}

// contentDisposition encodes non-ASCII names with RFC 2231.
func contentDisposition(disposition proxy.Disposition, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return string(disposition)
	}
	if v := mime.FormatMediaType(string(disposition), map[string]string{"filename": name}); v != "" {
		return v
	}
	return string(disposition)
}
