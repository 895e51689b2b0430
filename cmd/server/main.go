package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/quantfolio/internal/clients/yahoo"
	"github.com/aristath/quantfolio/internal/config"
	"github.com/aristath/quantfolio/internal/database"
	"github.com/aristath/quantfolio/internal/scheduler"
	"github.com/aristath/quantfolio/internal/server"
	"github.com/aristath/quantfolio/internal/services"
	"github.com/aristath/quantfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)

	log.Info().Int("port", cfg.Port).Msg("Starting quantfolio")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	repo := database.NewPriceRepository(db, log)
	yahooClient := yahoo.NewClient(log)
	prices := services.NewPriceSource(yahooClient, repo, log)
	analyzer := services.NewAnalyzer(log)

	sched := scheduler.New(log)
	if len(cfg.Symbols) > 0 {
		lookback := time.Duration(cfg.LookbackDays) * 24 * time.Hour
		refresh := scheduler.NewPriceRefreshJob(prices, cfg.Symbols, lookback, log)
		if err := sched.AddJob(cfg.RefreshSchedule, refresh); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule price refresh")
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Port:        cfg.Port,
		Log:         log,
		PriceSource: prices,
		Analyzer:    analyzer,
		DevMode:     cfg.DevMode,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("Server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
