package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/bootstrap"
	"github.com/innovites/cableaudit/internal/data"
	"github.com/innovites/cableaudit/internal/service"
)

func connectDB(logger *slog.Logger, cfg *config.AppConfig) (*sql.DB, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

// maybeConnectRedis returns nil when Redis is disabled.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func maybeConnectRedis(logger *slog.Logger, cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: *cfg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// jobService opens the job store. The caller closes the returned database.
func jobService(logger *slog.Logger, cfg *config.AppConfig) (*service.JobService, *sql.DB, error) {
	db, err := connectDB(logger, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := service.NewJobService(service.JobServiceOptions{
		Repo:        data.NewJobRepo(db, data.RepoConfig{Logger: logger}),
		MaxAttempts: cfg.Engine.MaxAttempts,
		Logger:      logger,
	})
	if err != nil {
		closeQuietly(logger, "database", db)
		return nil, nil, err
	}
	return svc, db, nil
}
