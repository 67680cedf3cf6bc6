// README: Entry point; loads config, runs migrations, wires services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parkman/internal/clock"
	"parkman/internal/config"
	httptransport "parkman/internal/http"
	"parkman/internal/infra"
	"parkman/internal/modules/event"
	"parkman/internal/modules/garage"
	"parkman/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Error("connect db", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := migrations.Apply(ctx, dbPool); err != nil {
		logger.Error("apply migrations", "error", err)
		os.Exit(1)
	}

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	clk := clock.System()

	garageStore := garage.NewStore(dbPool, redisClient, cfg.Redis.CacheTTL)
	garageSvc := garage.NewService(garageStore, logger)

	eventStore := event.NewStore(dbPool)
	eventSvc := event.NewService(eventStore, garageStore, clk, logger)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httptransport.NewRouter(eventSvc, garageSvc, clk, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}
