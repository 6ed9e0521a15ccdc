// Command cableaudit runs the design validation service: the HTTP API, the job engine and
// the reaper, in whichever combination SERVICES enables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/bootstrap"
)

// version is stamped by the build: -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("cableaudit exited", "error", err)
		os.Exit(1) //nolint:forbidigo // non-zero exit on fatal startup or runtime errors
	}
}

func run(ctx context.Context) (err error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger := bootstrap.InitLogger(cfg.LogLevel)

	enabled, _ := cfg.EnabledServices()
	logger.InfoContext(ctx, "starting cableaudit",
		"version", version,
		"services", enabled.Names(),
		"db", fmt.Sprintf("%s:%d/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Name),
		"redis", cfg.Redis.Enabled,
		"extractor", cfg.Pipeline.Extractor,
		"auditor", cfg.Pipeline.Auditor)

	var closers closeStack
	defer func() { err = errors.Join(err, closers.close(logger)) }()

	deps := &bootstrap.ServiceDeps{Config: &cfg, Logger: logger}
	if deps.DB, err = bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger}); err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	closers.push("postgres", deps.DB)

	if cfg.Redis.Enabled {
		if deps.RedisClient, err = bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger}); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		closers.push("redis", deps.RedisClient)
	} else {
		logger.InfoContext(ctx, "redis disabled; reference lookups read from postgres")
	}

	if err = prepareDatabase(ctx, &cfg, deps, logger); err != nil {
		return err
	}

	services, err := bootstrap.NewServices(deps)
	if err != nil {
		return err
	}
	if cfg.Reference.SeedOnStart {
		if _, err = bootstrap.SeedReference(ctx, services.References, bootstrap.SeedOptions{
			File:   cfg.Reference.SeedFile,
			Logger: logger,
		}); err != nil {
			return fmt.Errorf("seed reference dataset: %w", err)
		}
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:   &cfg,
		Services: services,
		DB:       deps.DB,
		Version:  version,
		Logger:   logger,
	})
}

func prepareDatabase(ctx context.Context, cfg *config.AppConfig, deps *bootstrap.ServiceDeps, logger *slog.Logger) error {
	if !cfg.Postgres.RunMigrationsOnStart {
		logger.InfoContext(ctx, "startup migrations disabled", "env", "DB_RUN_MIGRATIONS_ON_START")
		return nil
	}
	return bootstrap.RunMigrations(ctx, deps.DB, logger)
}

type namedCloser struct {
	name string
	c    io.Closer
}

// closeStack closes resources in reverse order of acquisition.
type closeStack []namedCloser

func (s *closeStack) push(name string, c io.Closer) {
	*s = append(*s, namedCloser{name: name, c: c})
}

func (s closeStack) close(logger *slog.Logger) error {
	var errs []error
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i].c.Close(); err != nil {
			logger.Error("close failed", "resource", s[i].name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", s[i].name, err))
		}
	}
	return errors.Join(errs...)
}
