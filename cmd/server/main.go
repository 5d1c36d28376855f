package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/muandane/special-stack/signet/internal/avatars"
	"github.com/muandane/special-stack/signet/internal/cache"
	"github.com/muandane/special-stack/signet/internal/config"
	"github.com/muandane/special-stack/signet/internal/handlers"
	"github.com/muandane/special-stack/signet/internal/logging"
	"github.com/muandane/special-stack/signet/internal/resolver"
	"github.com/muandane/special-stack/signet/internal/router"
	"github.com/muandane/special-stack/signet/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "signet:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "signet",
		Usage: "signed URL service for object storage avatars",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "path to a YAML config file",
						Sources: cli.EnvVars("SIGNET_CONFIG"),
					},
					&cli.StringFlag{
						Name:  "addr",
						Usage: "listen address, overrides the config file",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "debug, info, warn or error",
					},
				},
				Action: serve,
			},
		},
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if addr := cmd.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := cmd.String("log-level"); level != "" {
		cfg.Server.LogLevel = level
	}

	logger, err := logging.New(cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		return err
	}

	urls := cache.New(
		cache.WithSkew(cfg.Signing.Skew),
		cache.WithNegativeTTL(cfg.Signing.NegativeTTL),
		cache.WithLogger(logger.Named("cache")),
	)
	defer urls.Close()

	res := resolver.New(store, urls, cfg.Signing, logger.Named("resolver"))
	svc := avatars.NewService(store, urls, cfg.Storage.AvatarBucket, logger.Named("avatars"))

	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := router.NewRouter(&cfg.Storage, logger).Setup(router.Handlers{
		SignedURLs: handlers.NewSignedURLHandler(res, urls, logger),
		Avatars:    handlers.NewAvatarHandler(svc, logger),
		Stats:      handlers.NewStatsHandler(urls),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("storage_driver", cfg.Storage.Driver),
			zap.Duration("default_ttl", cfg.Signing.DefaultTTL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
