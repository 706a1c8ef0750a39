// Command fieldsd serves the custom task field API over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jacentio/taskfields/field"
	"github.com/jacentio/taskfields/httpapi"
	"github.com/jacentio/taskfields/internal/config"
	"github.com/jacentio/taskfields/sqlstore"
	"github.com/jacentio/taskfields/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("TASKFIELDS_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fieldsd stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	fieldStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := field.NewService(fieldStore, logger.With("component", "field"),
		field.WithKeepPropertiesOnOmit(cfg.KeepPropertiesOnOmit),
	)
	api := httpapi.New(svc, logger.With("component", "http"))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "backend", cfg.Backend)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("shut down")
	return nil
}

// openStore opens the configured backend. SQL backends are migrated first.
func openStore(ctx context.Context, cfg config.Config) (field.Store, func(), error) {
	if cfg.Backend == config.BackendDynamoDB {
		client, err := cfg.DynamoDB.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return store.New(client, cfg.DynamoDB.StoreConfig()), func() {}, nil
	}

	s, err := sqlstore.Open(cfg.Backend, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return s, func() { _ = s.Close() }, nil
}
