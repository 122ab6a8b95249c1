package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/workaholic/internal/auth"
	"github.com/mmynk/workaholic/internal/config"
	"github.com/mmynk/workaholic/internal/service"
	"github.com/mmynk/workaholic/internal/storage"
	"github.com/mmynk/workaholic/internal/storage/memory"
	"github.com/mmynk/workaholic/internal/storage/sqlite"
	"github.com/mmynk/workaholic/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	defer logCloser.Close()

	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Storage initialized", "backend", cfg.Storage.Backend, "database", cfg.Storage.DBPath)

	stopWatches := make(chan struct{})
	router := service.NewRouter(service.Deps{
		Store:         store,
		Authenticator: auth.NewPasswordAuthenticator(auth.NewDocUserStorage(store)),
		JWT:           auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration),
		Logger:        logger,
		Stop:          stopWatches,
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect streaming)
	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: h2c.NewHandler(router, &http2.Server{}),
	}
	// Shutdown waits for active requests, and Watch streams never finish on their own.
	srv.RegisterOnShutdown(func() { close(stopWatches) })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Connect server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Backend == config.StorageMemory {
		return memory.New(), nil
	}
	return sqlite.New(cfg.DBPath)
}
