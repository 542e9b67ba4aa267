package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/mail-sentinel/internal/cache"
	"github.com/raaihank/mail-sentinel/internal/classifier"
	"github.com/raaihank/mail-sentinel/internal/config"
	"github.com/raaihank/mail-sentinel/internal/logger"
	"github.com/raaihank/mail-sentinel/internal/observability"
	"github.com/raaihank/mail-sentinel/internal/privacy"
	"github.com/raaihank/mail-sentinel/internal/server"
	"github.com/raaihank/mail-sentinel/internal/store"
	"github.com/raaihank/mail-sentinel/internal/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the classification API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	var log *logger.Logger

	cfg, err := config.LoadAndWatch(configPath,
		func(updated *config.Config) {
			if log == nil {
				return
			}
			if err := log.SetLevel(updated.Logging.Level); err != nil {
				log.Warn("Ignoring invalid log level from reloaded config", zap.Error(err))
				return
			}
			log.Info("Configuration reloaded", zap.String("log_level", updated.Logging.Level))
		},
		func(err error) {
			if log != nil {
				log.Warn("Configuration reload rejected", zap.Error(err))
			}
		},
	)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err = newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting mail-sentinel",
		zap.String("version", Version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	masker, err := privacy.New(cfg.Privacy, log.WithComponent("privacy"))
	if err != nil {
		return err
	}

	model, err := classifier.Load(cfg.Classifier.ModelPath)
	if err != nil {
		return fmt.Errorf("%w (train one with `mailsentinel train`)", err)
	}
	log.Info("Classifier loaded",
		zap.String("model_path", cfg.Classifier.ModelPath),
		zap.Strings("classes", model.Classes()))

	metrics := observability.NewMetrics("mail_sentinel")
	deps := server.Deps{
		Masker:     masker,
		Classifier: model,
		Metrics:    metrics,
		Version:    Version,
	}

	if cfg.Cache.Enabled {
		resultCache, err := cache.NewResultCache(cfg.Cache, log)
		if err != nil {
			return err
		}
		defer resultCache.Close()
		deps.Cache = resultCache
	}

	if cfg.Storage.Enabled {
		auditStore, err := store.New(cfg.Storage, log)
		if err != nil {
			return err
		}
		defer auditStore.Close()

		if err := auditStore.EnsureSchema(ctx); err != nil {
			return err
		}
		deps.Store = auditStore
	}

	if cfg.WebSocket.Enabled {
		deps.Hub = websocket.NewHub(cfg.WebSocket, log, metrics)
	}

	srv, err := server.New(cfg, log, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start(ctx)
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("failed to shutdown server gracefully: %w", err)
		}

		log.Info("Server shutdown complete")
		return nil
	}
}
