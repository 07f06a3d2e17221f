package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"recordproof/internal/config"
	"recordproof/internal/infra/db"
	httpinfra "recordproof/internal/infra/http"
	"recordproof/internal/infra/keys/pemfile"
	"recordproof/internal/infra/schema"
	"recordproof/internal/logging"

	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	code := 0
	if err := run(cfg, logger); err != nil {
		logger.Error("recordproofd exited", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	os.Exit(code)
}

func run(cfg config.Config, logger *zap.Logger) error {
	// Without a usable key pair no record can be issued or verified, so
	// the listener is never opened.
	keys := pemfile.NewManager(cfg.KeyRoot, logger)
	if err := keys.Initialize(); err != nil {
		return fmt.Errorf("init signing keys: %w", err)
	}

	reg, err := schema.Load()
	if err != nil {
		return fmt.Errorf("load record schema: %w", err)
	}

	store, err := db.NewStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpinfra.NewServer(cfg, store, keys, reg, logger)
	defer func() { _ = srv.Close() }()
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
