package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webcarros-backend/internal/config"
	"webcarros-backend/internal/interfaces/router"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	setupLogger(cfg)

	app, res, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}
	defer res.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if sqlDB, err := res.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		log.Fatal().Msg("database connection failed")
	}
	log.Info().Msg("database connected")
	if err := res.Rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	log.Info().Msg("redis connected")
	if err := res.Blobs.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("backend", res.Blobs.Name()).Msg("blob storage unreachable")
	}
	cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info().Msg("shutting down")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Info().
		Str("addr", "http://localhost:"+cfg.Port).
		Str("health", "http://localhost:"+cfg.Port+"/health/json").
		Msg("server running")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("listen")
	}
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
