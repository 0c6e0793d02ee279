package main

import (
	"context"
	"os"
	"time"

	"quicktask/backend/internal/config"
	"quicktask/backend/internal/database"
	"quicktask/backend/internal/logging"
	"quicktask/backend/internal/seed"
	"quicktask/backend/internal/services"
)

func main() {
	logging.Configure()

	cfg, err := config.LoadConfig()
	if err != nil {
		fallback := logging.Fallback()
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New(cfg)

	pool, err := database.NewDatabasePool(database.PoolConfigFromConfig(cfg, logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := pool.Migrate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	hasher, err := services.NewPasswordHasher(cfg.Auth.PasswordScheme, cfg.Auth.BCryptCost)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure password hashing")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := seed.NewSeeder(pool.DB, hasher, logger).Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("seed failed")
		os.Exit(1)
	}

	logger.Info().
		Str("email", seed.DemoEmail).
		Str("password", seed.DemoPassword).
		Int("tasks", result.TaskCount).
		Msg("demo account ready")
}
