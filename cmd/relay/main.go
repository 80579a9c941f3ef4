package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/filerelay/internal/boot"
	"github.com/memohai/filerelay/internal/bot"
	"github.com/memohai/filerelay/internal/config"
	"github.com/memohai/filerelay/internal/dispatch"
	"github.com/memohai/filerelay/internal/files"
	"github.com/memohai/filerelay/internal/handlers"
	"github.com/memohai/filerelay/internal/ingest"
	"github.com/memohai/filerelay/internal/logger"
	"github.com/memohai/filerelay/internal/proxy"
	"github.com/memohai/filerelay/internal/server"
	"github.com/memohai/filerelay/internal/stats"
	"github.com/memohai/filerelay/internal/storage"
	"github.com/memohai/filerelay/internal/storage/s3"
	"github.com/memohai/filerelay/internal/telegram"
	"github.com/memohai/filerelay/internal/version"
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.Init(cfg.Log.Level, cfg.Log.Format)
}

func provideTelegramClient(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (*telegram.Client, error) {
	// Long polls hold the connection for poll_timeout seconds.
	httpClient := &http.Client{
		Timeout: time.Duration(cfg.Telegram.PollTimeout)*time.Second + cfg.Timeouts.Chat,
	}
	client, err := telegram.New(log, telegram.Config{
		BotToken:      rc.BotToken,
		APIEndpoint:   cfg.Telegram.APIEndpoint,
		FileEndpoint:  cfg.Telegram.FileEndpoint,
		StorageChatID: rc.StorageChatID,
		SendRate:      cfg.Telegram.SendRate,
	}, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return client, nil
}

func provideObjectStorage(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (storage.Backend, error) {
	osc := rc.ObjectStorage
	if !osc.Enabled() {
		log.Warn("object storage not configured, small files will be rejected")
		return storage.Unconfigured{}, nil
	}
	backend, err := s3.New(log, s3.Config{
		Endpoint:  osc.Endpoint,
		Region:    osc.Region,
		Bucket:    osc.Bucket,
		AccessKey: osc.AccessKey,
		SecretKey: osc.SecretKey,
		UseSSL:    osc.UseSSL,
		PathStyle: osc.PathStyle,
		Prefix:    osc.Prefix,
		LinkTTL:   osc.LinkTTL,
	}, &http.Client{Timeout: cfg.Timeouts.Storage})
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Chat)
	defer cancel()
	if err := backend.Ping(ctx); err != nil {
		log.Warn("object storage unreachable at startup", slog.Any("error", err))
	}
	return backend, nil
}

func provideOrchestrator(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig, client *telegram.Client, objects storage.Backend, store files.Store) *ingest.Orchestrator {
	return ingest.NewOrchestrator(log, ingest.Config{
		Threshold:      cfg.Routing.ThresholdBytes,
		MaxFileSize:    cfg.Routing.MaxFileBytes,
		Secret:         rc.TokenSecret,
		BaseURL:        rc.BaseURL,
		ChatTimeout:    cfg.Timeouts.Chat,
		StorageTimeout: cfg.Timeouts.Storage,
	}, client, objects, store)
}

func provideProxy(log *slog.Logger, cfg config.Config, store files.Store, client *telegram.Client) *proxy.Service {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeouts.UpstreamHeader
	transport.DialContext = (&net.Dialer{Timeout: cfg.Timeouts.Chat, KeepAlive: 30 * time.Second}).DialContext
	return proxy.NewService(log, store, client, &http.Client{Transport: transport}, cfg.Timeouts.Chat)
}

func provideProcessor(log *slog.Logger, client *telegram.Client, orchestrator *ingest.Orchestrator, store files.Store, objects storage.Backend) *bot.Processor {
	return bot.NewProcessor(log, client, orchestrator, store, objects)
}

func provideDispatcher(log *slog.Logger, cfg config.Config, processor *bot.Processor) *dispatch.Dispatcher {
	return dispatch.New(log, processor, cfg.Dispatch.Workers, cfg.Dispatch.QueueSize)
}

func provideReporter(log *slog.Logger, store files.Store, dispatcher *dispatch.Dispatcher) *stats.Reporter {
	return stats.NewReporter(log, store, dispatcher)
}

func provideFilesHandler(log *slog.Logger, svc *proxy.Service) *handlers.FilesHandler {
	return handlers.NewFilesHandler(log, svc)
}

func provideWebhookHandler(log *slog.Logger, rc *boot.RuntimeConfig, dispatcher *dispatch.Dispatcher) *handlers.WebhookHandler {
	secret := rc.WebhookSecret
	if rc.Mode == config.ModePolling {
		secret = ""
	}
	return handlers.NewWebhookHandler(log, secret, dispatcher)
}

func main() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			boot.ProvideRuntimeConfig,

			fx.Annotate(files.NewMemoryStore, fx.As(new(files.Store))),
			provideTelegramClient,
			provideObjectStorage,
			provideOrchestrator,
			provideProxy,
			provideProcessor,
			provideDispatcher,
			provideReporter,

			provideServerHandler(handlers.NewHealthHandler),
			provideServerHandler(provideFilesHandler),
			provideServerHandler(provideWebhookHandler),

			provideServer,
		),
		fx.Invoke(
			startDispatcher,
			startPolling,
			startStatsReporter,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.ServerHandlers...)
}

func startDispatcher(lc fx.Lifecycle, dispatcher *dispatch.Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			dispatcher.Start(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return dispatcher.Stop(ctx)
		},
	})
}

func startPolling(lc fx.Lifecycle, logger *slog.Logger, rc *boot.RuntimeConfig, cfg config.Config, client *telegram.Client, dispatcher *dispatch.Dispatcher) {
	if rc.Mode != config.ModePolling {
		return
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.DeleteWebhook(ctx, false); err != nil {
				cancel()
				return err
			}
			go client.Poll(pollCtx, cfg.Telegram.PollTimeout, func(update tgbotapi.Update) {
				if err := dispatcher.Submit(pollCtx, update); err != nil {
					logger.Warn("update not queued", slog.Int("update_id", update.UpdateID), slog.Any("error", err))
				}
			})
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			client.StopPolling()
			return nil
		},
	})
}

func startStatsReporter(lc fx.Lifecycle, cfg config.Config, reporter *stats.Reporter) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return reporter.Start(cfg.Stats.Schedule)
		},
		OnStop: func(ctx context.Context) error {
			return reporter.Stop(ctx)
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	srv *server.Server,
	shutdowner fx.Shutdowner,
	rc *boot.RuntimeConfig,
	client *telegram.Client,
) {
	fmt.Printf("Starting File Relay %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("relay ready",
				slog.String("bot", client.Username()),
				slog.String("mode", rc.Mode),
				slog.String("base_url", rc.BaseURL),
			)
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
