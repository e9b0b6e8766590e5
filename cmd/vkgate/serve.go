package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/vkgate/vkgate/internal/callback"
	"github.com/vkgate/vkgate/internal/config"
	"github.com/vkgate/vkgate/internal/handlers"
	"github.com/vkgate/vkgate/internal/logger"
	"github.com/vkgate/vkgate/internal/longpoll"
	"github.com/vkgate/vkgate/internal/message"
	"github.com/vkgate/vkgate/internal/server"
	"github.com/vkgate/vkgate/internal/upload"
	"github.com/vkgate/vkgate/internal/version"
	"github.com/vkgate/vkgate/internal/vkapi"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideVKClient,
			provideUploader,
			provideNormalizer,
			provideInboundHandler,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideCallbackHandler),
			provideServer,
		),
		fx.Invoke(
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

func provideConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideVKClient(log *slog.Logger, cfg config.Config) *vkapi.Client {
	return vkapi.NewClient(log, vkapi.Config{
		Token:   cfg.VK.Token,
		Version: cfg.VK.Version,
		BaseURL: cfg.VK.BaseURL,
		Timeout: time.Duration(cfg.VK.TimeoutSeconds) * time.Second,
	})
}

func provideUploader(log *slog.Logger, client *vkapi.Client) *upload.Client {
	return upload.NewClient(log, client, nil)
}

func provideNormalizer(log *slog.Logger) *message.Normalizer {
	return message.NewNormalizer(log, longpoll.DecodeMessage)
}

// provideInboundHandler logs every normalized message and, in echo mode,
// answers text messages with their own text.
func provideInboundHandler(log *slog.Logger, cfg config.Config) callback.Handler {
	echoMode := cfg.Bot.EchoMode
	return func(ctx context.Context, view *message.View) error {
		rendered, err := json.Marshal(view)
		if err != nil {
			return fmt.Errorf("render message: %w", err)
		}
		log.Info("message received", slog.String("message", string(rendered)))

		if !echoMode || view.IsOutbound() || !view.HasText() {
			return nil
		}
		if _, err := view.Reply(ctx, message.Outgoing{Text: view.Text()}); err != nil {
			return fmt.Errorf("echo reply: %w", err)
		}
		return nil
	}
}

func provideCallbackHandler(log *slog.Logger, cfg config.Config, normalizer *message.Normalizer, api *vkapi.Client, uploads *upload.Client, handler callback.Handler) *callback.WebhookHandler {
	return callback.NewWebhookHandler(log, normalizer, api, uploads, handler, callback.Config{
		Path:         cfg.Callback.Path,
		Confirmation: cfg.Callback.Confirmation,
		Secret:       cfg.Callback.Secret,
		GroupID:      cfg.Callback.GroupID,
	})
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting vkgate %s\n", version.GetInfo())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
