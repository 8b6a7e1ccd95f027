// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/config"
	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/db"
	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/match"
	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/scheduler"
)

const defaultConfigPath = "config.yaml"

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	manager := match.NewManager(database.Queries)
	manager.DispatchWindow = cfg.Scout.DispatchWindow.Std()

	sched, err := scheduler.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	if err := sched.RegisterFlushJob(manager, cfg.Scout.PersistRetryCron); err != nil {
		log.Fatal().Err(err).Msg("Failed to register persistence retry job")
	}
	sched.Start()

	server := newServer(cfg, manager)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := sched.Stop(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown failed")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
