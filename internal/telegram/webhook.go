package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SetWebhook registers link as the update endpoint of the bot.
func (c *Client) SetWebhook(ctx context.Context, link string, dropPending bool) error {
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return fmt.Errorf("parse webhook url: %w", err)
	}
	wh.DropPendingUpdates = dropPending
	wh.AllowedUpdates = []string{"message"}
	if _, err := call(ctx, func() (*tgbotapi.APIResponse, error) {
		return c.bot.Request(wh)
	}); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	c.logger.Info("webhook registered", slog.String("host", wh.URL.Host))
	return nil
}

// DeleteWebhook removes the webhook; long polling fails while one is set.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	if _, err := call(ctx, func() (*tgbotapi.APIResponse, error) {
		return c.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: dropPending})
	}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// WebhookInfo returns the current webhook registration.
func (c *Client) WebhookInfo(ctx context.Context) (tgbotapi.WebhookInfo, error) {
	info, err := call(ctx, func() (tgbotapi.WebhookInfo, error) {
		return c.bot.GetWebhookInfo()
	})
	if err != nil {
		return tgbotapi.WebhookInfo{}, fmt.Errorf("get webhook info: %w", err)
	}
	return info, nil
}
