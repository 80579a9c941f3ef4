// Package telegram is the chat backend of the relay, built on the Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/memohai/filerelay/internal/ingest"
)

// ErrNoFile is returned when a forwarded message carries no file.
var ErrNoFile = errors.New("message carries no file")

// tgbotapi keeps a single package-level logger.
var setLoggerOnce sync.Once

// Client implements ingest.ChatProtocol, proxy.Resolver and the bot messenger.
type Client struct {
	bot     *tgbotapi.BotAPI
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger

	stopOnce sync.Once
}

// New connects to the Bot API; the bot token is verified with getMe.
func New(log *slog.Logger, cfg Config, httpClient *http.Client) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := log.With(slog.String("component", "telegram"))
	setLoggerOnce.Do(func() {
		_ = tgbotapi.SetLogger(&slogBotLogger{log: logger})
	})

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, cfg.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connect bot api: %w", err)
	}
	logger.Info("bot authorized", slog.String("username", bot.Self.UserName))
	return &Client{
		bot:     bot,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.SendRate), 1),
		logger:  logger,
	}, nil
}

// Username returns the bot's username.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// FileSize returns the size Telegram reports for the file.
func (c *Client) FileSize(ctx context.Context, ref string) (int64, error) {
	file, err := c.getFile(ctx, ref)
	if err != nil {
		return 0, err
	}
	return int64(file.FileSize), nil
}

// FileLink returns the download URL of the file on the Bot API file endpoint.
func (c *Client) FileLink(ctx context.Context, ref string) (string, error) {
	file, err := c.getFile(ctx, ref)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(file.FilePath) == "" {
		return "", fmt.Errorf("file %s has no download path", ref)
	}
	return fmt.Sprintf(c.cfg.FileEndpoint, c.cfg.BotToken, file.FilePath), nil
}

// ResolveStoredRef resolves a stored copy to a fetchable URL.
func (c *Client) ResolveStoredRef(ctx context.Context, storedRef string) (string, error) {
	return c.FileLink(ctx, storedRef)
}

// ForwardToStorage forwards the message at origin to the storage chat and
// returns the file id of the forwarded copy. Without a storage chat, or
// without an origin message, ref is returned unchanged.
func (c *Client) ForwardToStorage(ctx context.Context, ref string, origin ingest.Origin) (string, error) {
	if c.cfg.StorageChatID == 0 || origin.ChatID == 0 || origin.MessageID == 0 {
		return ref, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	msg, err := call(ctx, func() (tgbotapi.Message, error) {
		return c.bot.Send(tgbotapi.NewForward(c.cfg.StorageChatID, origin.ChatID, origin.MessageID))
	})
	if err != nil {
		return "", fmt.Errorf("forward message: %w", err)
	}
	att, ok := AttachmentFromMessage(&msg)
	if !ok {
		return "", ErrNoFile
	}
	return att.FileID, nil
}

// Reply sends a plain text message, optionally as a reply, and returns its id.
func (c *Client) Reply(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	cfg := tgbotapi.NewMessage(chatID, text)
	cfg.ReplyToMessageID = replyTo
	cfg.DisableWebPagePreview = true
	msg, err := call(ctx, func() (tgbotapi.Message, error) {
		return c.bot.Send(cfg)
	})
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return msg.MessageID, nil
}

// Edit replaces the text of a message sent by the bot.
func (c *Client) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	cfg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	cfg.DisableWebPagePreview = true
	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) {
		return c.bot.Request(cfg)
	})
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// Poll long-polls for updates and hands each to sink until ctx ends.
func (c *Client) Poll(ctx context.Context, timeoutSeconds int, sink func(tgbotapi.Update)) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSeconds
	updates := c.bot.GetUpdatesChan(u)
	c.logger.Info("polling started", slog.Int("timeout", timeoutSeconds))
	for {
		select {
		case <-ctx.Done():
			c.StopPolling()
			return
		case update, ok := <-updates:
			if !ok {
				c.logger.Info("updates channel closed")
				return
			}
			sink(update)
		}
	}
}

// StopPolling stops the update receiver. Safe to call more than once.
func (c *Client) StopPolling() {
	c.stopOnce.Do(func() {
		c.logger.Info("polling stopped")
		c.bot.StopReceivingUpdates()
	})
}

func (c *Client) getFile(ctx context.Context, ref string) (tgbotapi.File, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return tgbotapi.File{}, errors.New("file id is required")
	}
	file, err := call(ctx, func() (tgbotapi.File, error) {
		return c.bot.GetFile(tgbotapi.FileConfig{FileID: ref})
	})
	if err != nil {
		return tgbotapi.File{}, fmt.Errorf("get file: %w", err)
	}
	return file, nil
}

// call runs a blocking Bot API request and gives up when ctx ends. The
// request itself is bounded by the HTTP client timeout.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
