package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/memohai/filerelay/internal/config"
	"github.com/memohai/filerelay/internal/logger"
)

type cliOptions struct {
	configPath string
	apiBaseURL string
	timeout    time.Duration
	getenv     func(string) string
}

func main() {
	if err := newRootCmd(os.Getenv).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	opts := &cliOptions{getenv: getenv}

	defaultConfig := getenv("CONFIG_PATH")
	if strings.TrimSpace(defaultConfig) == "" {
		defaultConfig = config.DefaultConfigPath
	}

	root := &cobra.Command{
		Use:           "relayctl",
		Short:         "Operate a file relay instance",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "Path to config.toml")
	root.PersistentFlags().StringVar(&opts.apiBaseURL, "api-url", "", "Relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")

	root.AddCommand(
		newTokenCmd(opts),
		newRouteCmd(opts),
		newHealthCmd(opts),
		newWebhookCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *cliOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func (o *cliOptions) baseURL(cfg config.Config) string {
	if value := normalizeBaseURL(o.apiBaseURL); value != "" {
		return value
	}
	if value := normalizeBaseURL(o.getenv("PUBLIC_BASE_URL")); value != "" {
		return value
	}
	if value := normalizeBaseURL(cfg.Server.BaseURL); value != "" {
		return value
	}
	return defaultAPIBaseURL(cfg.Server.Addr)
}

func normalizeBaseURL(value string) string {
	return strings.TrimRight(strings.TrimSpace(value), "/")
}

func defaultAPIBaseURL(addr string) string {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return normalizeBaseURL(trimmed)
	}
	if strings.HasPrefix(trimmed, ":") {
		return "http://127.0.0.1" + trimmed
	}
	return "http://" + trimmed
}
