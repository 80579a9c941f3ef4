package telegram

import (
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultSendRate is the outbound message budget per second.
const DefaultSendRate = 25

// Config holds the bot credentials and endpoints.
type Config struct {
	BotToken string
	// APIEndpoint and FileEndpoint are printf templates taking the token and
	// the method or file path, as in tgbotapi.APIEndpoint.
	APIEndpoint  string
	FileEndpoint string
	// StorageChatID is the chat large files are forwarded into. Zero keeps
	// files in the chat they arrived in.
	StorageChatID int64
	SendRate      float64
}

func (c Config) normalize() (Config, error) {
	c.BotToken = strings.TrimSpace(c.BotToken)
	if c.BotToken == "" {
		return Config{}, errors.New("telegram bot_token is required")
	}
	if c.APIEndpoint = strings.TrimSpace(c.APIEndpoint); c.APIEndpoint == "" {
		c.APIEndpoint = tgbotapi.APIEndpoint
	}
	if c.FileEndpoint = strings.TrimSpace(c.FileEndpoint); c.FileEndpoint == "" {
		c.FileEndpoint = tgbotapi.FileEndpoint
	}
	if strings.Count(c.APIEndpoint, "%s") != 2 || strings.Count(c.FileEndpoint, "%s") != 2 {
		return Config{}, errors.New("telegram endpoints must contain two %s placeholders")
	}
	if c.SendRate <= 0 {
		c.SendRate = DefaultSendRate
	}
	return c, nil
}
