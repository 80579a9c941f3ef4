package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/memohai/filerelay/internal/config"
	"github.com/memohai/filerelay/internal/routing"
	"github.com/memohai/filerelay/internal/telegram"
	"github.com/memohai/filerelay/internal/token"
	"github.com/memohai/filerelay/internal/version"
)

func newTokenCmd(opts *cliOptions) *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "token <content-ref> <owner-id>",
		Short: "Derive the access token issued for a proxied file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ownerID, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid owner id %q: %w", args[1], err)
			}
			secret = firstNonEmpty(secret, opts.getenv("TOKEN_SECRET"), cfg.Security.TokenSecret)
			if secret == "" {
				return errors.New("token secret is required; pass --secret or set TOKEN_SECRET")
			}
			tok := token.Derive(args[0], ownerID, secret)
			base := opts.baseURL(cfg)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tok)
			fmt.Fprintf(out, "stream:   %s/stream/%s\n", base, tok)
			fmt.Fprintf(out, "download: %s/download/%s\n", base, tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Token secret (or set TOKEN_SECRET)")
	return cmd
}

func newRouteCmd(opts *cliOptions) *cobra.Command {
	var threshold int64
	cmd := &cobra.Command{
		Use:   "route <size-bytes>",
		Short: "Show which backend a file of the given size is routed to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			size, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || size < 0 {
				return fmt.Errorf("invalid size %q", args[0])
			}
			if threshold <= 0 {
				threshold = cfg.Routing.ThresholdBytes
			}
			out := cmd.OutOrStdout()
			switch {
			case size == 0:
				fmt.Fprintln(out, "rejected: size unknown")
			case cfg.Routing.MaxFileBytes > 0 && size > cfg.Routing.MaxFileBytes:
				fmt.Fprintf(out, "rejected: %s exceeds %s\n", routing.FormatSize(size), routing.FormatSize(cfg.Routing.MaxFileBytes))
			default:
				fmt.Fprintf(out, "%s (%s, threshold %s)\n", routing.Decide(size, threshold), routing.FormatSize(size), routing.FormatSize(threshold))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&threshold, "threshold", 0, "Threshold in bytes (defaults to the configured value)")
	return cmd
}

func newHealthCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Query the relay health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			base := opts.baseURL(cfg)
			if base == "" {
				return errors.New("api url is required")
			}
			ctx, cancel := opts.withTimeout(cmd.Context())
			defer cancel()
			return fetchHealth(ctx, &http.Client{Timeout: opts.timeout}, base, cmd.OutOrStdout())
		},
	}
}

func fetchHealth(ctx context.Context, client *http.Client, baseURL string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalizeBaseURL(baseURL)+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("health check failed: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	var body struct {
		Status      string `json:"status"`
		Uptime      int64  `json:"uptime"`
		FilesStored int    `json:"filesStored"`
		Timestamp   string `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode health: %w", err)
	}
	fmt.Fprintf(out, "status: %s\nuptime: %s\nfiles stored: %d\n", body.Status, time.Duration(body.Uptime)*time.Second, body.FilesStored)
	return nil
}

func newWebhookCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}

	var dropPending bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Point the bot webhook at this relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withTelegram(cmd, func(ctx context.Context, cfg config.Config, client *telegram.Client) error {
				secret := firstNonEmpty(opts.getenv("WEBHOOK_SECRET"), cfg.Security.WebhookSecret)
				if secret == "" {
					return errors.New("webhook secret is required; set WEBHOOK_SECRET")
				}
				base := opts.baseURL(cfg)
				if !strings.HasPrefix(base, "https://") {
					return fmt.Errorf("telegram requires an https webhook, got %q", base)
				}
				if err := client.SetWebhook(ctx, webhookURL(base, secret), dropPending); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "webhook set for @%s at %s/webhook/…\n", client.Username(), base)
				return nil
			})
		},
	}
	set.Flags().BoolVar(&dropPending, "drop-pending", false, "Discard updates queued while no webhook was set")

	var dropOnDelete bool
	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove the bot webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withTelegram(cmd, func(ctx context.Context, _ config.Config, client *telegram.Client) error {
				if err := client.DeleteWebhook(ctx, dropOnDelete); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "webhook deleted for @%s\n", client.Username())
				return nil
			})
		},
	}
	del.Flags().BoolVar(&dropOnDelete, "drop-pending", false, "Discard updates queued for delivery")

	info := &cobra.Command{
		Use:   "info",
		Short: "Show the current webhook registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withTelegram(cmd, func(ctx context.Context, _ config.Config, client *telegram.Client) error {
				wh, err := client.WebhookInfo(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				url := wh.URL
				if url == "" {
					url = "(none)"
				} else if i := strings.Index(url, "/webhook/"); i >= 0 {
					url = url[:i] + "/webhook/…"
				}
				fmt.Fprintf(out, "url: %s\npending updates: %d\n", url, wh.PendingUpdateCount)
				if wh.LastErrorMessage != "" {
					fmt.Fprintf(out, "last error: %s (%s)\n", wh.LastErrorMessage, time.Unix(int64(wh.LastErrorDate), 0).UTC().Format(time.RFC3339))
				}
				return nil
			})
		},
	}

	cmd.AddCommand(set, del, info)
	return cmd
}

func (o *cliOptions) withTelegram(cmd *cobra.Command, fn func(context.Context, config.Config, *telegram.Client) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	client, err := telegram.New(nil, telegram.Config{
		BotToken:     firstNonEmpty(o.getenv("TELEGRAM_BOT_TOKEN"), cfg.Telegram.BotToken),
		APIEndpoint:  cfg.Telegram.APIEndpoint,
		FileEndpoint: cfg.Telegram.FileEndpoint,
		SendRate:     cfg.Telegram.SendRate,
	}, &http.Client{Timeout: o.timeout})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	ctx, cancel := o.withTimeout(cmd.Context())
	defer cancel()
	return fn(ctx, cfg, client)
}

func (o *cliOptions) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

func webhookURL(baseURL, secret string) string {
	return normalizeBaseURL(baseURL) + "/webhook/" + secret
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "File Relay CLI %s\n", version.GetInfo())
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
