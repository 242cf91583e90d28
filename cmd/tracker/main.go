package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/noah-isme/facilitator-activity-tracker/internal/app"
	"github.com/noah-isme/facilitator-activity-tracker/internal/config"
	"github.com/noah-isme/facilitator-activity-tracker/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("activity tracker: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn().Err(err).Msg("closing database failed")
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	container, err := app.New(cfg, db, redisClient, logger)
	if err != nil {
		return fmt.Errorf("wire application: %w", err)
	}

	logger.Info().Str("env", cfg.AppEnv).Str("notify_channel", cfg.NotifyChannel).Msg("activity tracker starting")
	if err := container.Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("activity tracker stopped")
	return nil
}
