package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mcoot/battleship/internal/api"
	"github.com/mcoot/battleship/internal/config"
	"github.com/mcoot/battleship/internal/factory"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: settings.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := run(settings, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(settings *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := factory.New(ctx, factory.ConfigFromSettings(settings, logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("closing application", slog.String("error", err.Error()))
		}
	}()

	router := api.NewRouter(api.RouterConfig{Logger: logger, App: app})
	server := api.NewServer(router, api.ServerConfigFromSettings(settings), logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.Sweeper.Run(ctx)
	}()

	if app.Relay != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.Relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("event relay stopped", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("server starting",
		slog.String("addr", server.Addr()),
		slog.String("storage", settings.StorageType))

	err = server.Run(ctx)
	stop()
	wg.Wait()
	return err
}
