// Package boot provides runtime configuration for the relay.
package boot

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/memohai/filerelay/internal/config"
)

// RuntimeConfig holds validated runtime settings.
// Values may be overridden by environment variables (e.g. HTTP_ADDR, TELEGRAM_BOT_TOKEN).
type RuntimeConfig struct {
	ServerAddr    string
	BaseURL       string
	TokenSecret   string
	WebhookSecret string
	BotToken      string
	StorageChatID int64
	Mode          string
	ObjectStorage config.ObjectStorageConfig
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config, log *slog.Logger) (*RuntimeConfig, error) {
	return buildRuntimeConfig(cfg, os.Getenv, log)
}

func buildRuntimeConfig(cfg config.Config, getenv func(string) string, log *slog.Logger) (*RuntimeConfig, error) {
	if log == nil {
		log = slog.Default()
	}
	ret := &RuntimeConfig{
		ServerAddr:    cfg.Server.Addr,
		BaseURL:       cfg.Server.BaseURL,
		TokenSecret:   cfg.Security.TokenSecret,
		WebhookSecret: cfg.Security.WebhookSecret,
		BotToken:      cfg.Telegram.BotToken,
		StorageChatID: cfg.Telegram.StorageChatID,
		Mode:          strings.ToLower(strings.TrimSpace(cfg.Telegram.Mode)),
		ObjectStorage: cfg.ObjectStorage,
	}

	if value := getenv("HTTP_ADDR"); value != "" {
		ret.ServerAddr = value
	} else if value := getenv("PORT"); value != "" {
		ret.ServerAddr = ":" + value
	}
	if value := getenv("PUBLIC_BASE_URL"); value != "" {
		ret.BaseURL = value
	}
	if value := getenv("TELEGRAM_BOT_TOKEN"); value != "" {
		ret.BotToken = value
	}
	if value := getenv("TOKEN_SECRET"); value != "" {
		ret.TokenSecret = value
	}
	if value := getenv("WEBHOOK_SECRET"); value != "" {
		ret.WebhookSecret = value
	}
	if value := getenv("STORAGE_CHAT_ID"); value != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid STORAGE_CHAT_ID: %w", err)
		}
		ret.StorageChatID = id
	}
	if value := getenv("S3_ACCESS_KEY"); value != "" {
		ret.ObjectStorage.AccessKey = value
	}
	if value := getenv("S3_SECRET_KEY"); value != "" {
		ret.ObjectStorage.SecretKey = value
	}

	if strings.TrimSpace(ret.BotToken) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if strings.TrimSpace(ret.TokenSecret) == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.Routing.ThresholdBytes <= 0 {
		return nil, errors.New("routing threshold must be positive")
	}
	if cfg.Routing.MaxFileBytes < 0 {
		return nil, errors.New("routing max_file_bytes must not be negative")
	}
	switch ret.Mode {
	case "":
		ret.Mode = config.ModeWebhook
	case config.ModeWebhook, config.ModePolling:
	default:
		return nil, fmt.Errorf("unknown telegram mode %q", ret.Mode)
	}
	if ret.Mode == config.ModeWebhook && ret.WebhookSecret == "" {
		return nil, errors.New("webhook mode requires a webhook secret")
	}
	if ret.ServerAddr == "" {
		ret.ServerAddr = config.DefaultHTTPAddr
	}

	ret.BaseURL = strings.TrimRight(strings.TrimSpace(ret.BaseURL), "/")
	if ret.BaseURL == "" {
		ret.BaseURL = "http://127.0.0.1:" + listenPort(ret.ServerAddr)
		log.Warn("public base url not configured, links will only work locally", slog.String("base_url", ret.BaseURL))
	}
	return ret, nil
}

func listenPort(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil && port != "" {
		return port
	}
	return "8080"
}
