// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultThresholdBytes  = 20 * 1024 * 1024
	DefaultMaxFileBytes    = 4 * 1024 * 1024 * 1024
	DefaultTelegramMode    = ModeWebhook
	DefaultPollTimeout     = 30
	DefaultSendRate        = 25
	DefaultRegion          = "us-east-1"
	DefaultObjectPrefix    = "uploads"
	DefaultLinkTTL         = 7 * 24 * time.Hour
	DefaultChatTimeout     = 15 * time.Second
	DefaultStorageTimeout  = 10 * time.Minute
	DefaultUpstreamHeader  = 30 * time.Second
	DefaultDispatchWorkers = 4
	DefaultQueueSize       = 256
	DefaultStatsSchedule   = "@every 1h"
)

// Telegram update delivery modes.
const (
	ModeWebhook = "webhook"
	ModePolling = "polling"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log           LogConfig           `toml:"log"`
	Server        ServerConfig        `toml:"server"`
	Routing       RoutingConfig       `toml:"routing"`
	Security      SecurityConfig      `toml:"security"`
	Telegram      TelegramConfig      `toml:"telegram"`
	ObjectStorage ObjectStorageConfig `toml:"object_storage"`
	Timeouts      TimeoutsConfig      `toml:"timeouts"`
	Dispatch      DispatchConfig      `toml:"dispatch"`
	Stats         StatsConfig         `toml:"stats"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP listen address and the public base URL used in links.
type ServerConfig struct {
	Addr    string `toml:"addr"`
	BaseURL string `toml:"base_url"`
}

// RoutingConfig holds the size threshold between the two backends and the upload limit.
type RoutingConfig struct {
	ThresholdBytes int64 `toml:"threshold_bytes"`
	MaxFileBytes   int64 `toml:"max_file_bytes"`
}

// SecurityConfig holds the token secret and the webhook path secret.
type SecurityConfig struct {
	TokenSecret   string `toml:"token_secret"`
	WebhookSecret string `toml:"webhook_secret"`
}

// TelegramConfig holds the bot credentials and update delivery settings.
type TelegramConfig struct {
	BotToken      string  `toml:"bot_token"`
	APIEndpoint   string  `toml:"api_endpoint"`
	FileEndpoint  string  `toml:"file_endpoint"`
	StorageChatID int64   `toml:"storage_chat_id"`
	Mode          string  `toml:"mode"`
	PollTimeout   int     `toml:"poll_timeout"`
	SendRate      float64 `toml:"send_rate"`
}

// ObjectStorageConfig holds the S3-compatible bucket used for small files.
type ObjectStorageConfig struct {
	Endpoint  string        `toml:"endpoint"`
	Region    string        `toml:"region"`
	Bucket    string        `toml:"bucket"`
	AccessKey string        `toml:"access_key"`
	SecretKey string        `toml:"secret_key"`
	UseSSL    bool          `toml:"use_ssl"`
	PathStyle bool          `toml:"path_style"`
	Prefix    string        `toml:"prefix"`
	LinkTTL   time.Duration `toml:"link_ttl"`
}

// Enabled reports whether an endpoint and bucket are configured.
func (c ObjectStorageConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// TimeoutsConfig bounds calls to the chat backend, object storage and upstream streams.
type TimeoutsConfig struct {
	Chat           time.Duration `toml:"chat"`
	Storage        time.Duration `toml:"storage"`
	UpstreamHeader time.Duration `toml:"upstream_header"`
}

// DispatchConfig sizes the update worker pool.
type DispatchConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

// StatsConfig holds the cron schedule of the periodic stats report; empty disables it.
type StatsConfig struct {
	Schedule string `toml:"schedule"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Routing: RoutingConfig{
			ThresholdBytes: DefaultThresholdBytes,
			MaxFileBytes:   DefaultMaxFileBytes,
		},
		Telegram: TelegramConfig{
			Mode:        DefaultTelegramMode,
			PollTimeout: DefaultPollTimeout,
			SendRate:    DefaultSendRate,
		},
		ObjectStorage: ObjectStorageConfig{
			Region:  DefaultRegion,
			UseSSL:  true,
			Prefix:  DefaultObjectPrefix,
			LinkTTL: DefaultLinkTTL,
		},
		Timeouts: TimeoutsConfig{
			Chat:           DefaultChatTimeout,
			Storage:        DefaultStorageTimeout,
			UpstreamHeader: DefaultUpstreamHeader,
		},
		Dispatch: DispatchConfig{
			Workers:   DefaultDispatchWorkers,
			QueueSize: DefaultQueueSize,
		},
		Stats: StatsConfig{
			Schedule: DefaultStatsSchedule,
		},
	}
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
