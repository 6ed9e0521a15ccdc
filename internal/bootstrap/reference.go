package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/data"
	"github.com/innovites/cableaudit/internal/data/referencedata"
)

// ReferenceStore bundles the reference table repository with its cached reader.
type ReferenceStore struct {
	Repo   *data.ReferenceRepo
	Reader *data.CachedReferenceReader
}

// NewReferenceStore wires the reference repository, fronted by Redis when a client is given.
func NewReferenceStore(db *sql.DB, client redis.UniversalClient, cfg config.ReferenceConfig, logger *slog.Logger) (*ReferenceStore, error) {
	repo := data.NewReferenceRepo(db)

	opts := data.CachedReferenceReaderOptions{
		Source: repo,
		TTL:    cfg.CacheTTL,
		Logger: logger,
	}
	if client != nil {
		opts.Cache = data.NewRedisCacheRepo(client)
	}

	reader, err := data.NewCachedReferenceReader(opts)
	if err != nil {
		return nil, fmt.Errorf("create reference reader: %w", err)
	}
	return &ReferenceStore{Repo: repo, Reader: reader}, nil
}

// SeedOptions controls SeedReference.
type SeedOptions struct {
	// File overrides the embedded dataset.
	File string
	// Force replaces the tables even when they already hold rows.
	Force  bool
	Logger *slog.Logger
}

// SeedReference loads the reference dataset into empty tables, or always when Force is set.
// It reports whether the tables were written.
func SeedReference(ctx context.Context, store *ReferenceStore, opts SeedOptions) (bool, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if !opts.Force {
		n, err := store.Repo.Count(ctx)
		if err != nil {
			return false, fmt.Errorf("count reference rows: %w", err)
		}
		if n > 0 {
			logger.DebugContext(ctx, "reference dataset already present", "conductors", n)
			return false, nil
		}
	}

	dataset, err := referencedata.LoadFile(opts.File)
	if err != nil {
		return false, err
	}
	if err := store.Repo.Replace(ctx, dataset); err != nil {
		return false, fmt.Errorf("replace reference dataset: %w", err)
	}
	if err := store.Reader.Invalidate(ctx); err != nil {
		// Stale entries expire on their own TTL.
		logger.WarnContext(ctx, "reference cache invalidation failed", "error", err)
	}

	logger.InfoContext(ctx, "reference dataset seeded",
		"conductors", len(dataset.Conductors),
		"insulation", len(dataset.Insulation),
		"source", seedSource(opts.File),
	)
	return true, nil
}

func seedSource(file string) string {
	if file == "" {
		return "embedded"
	}
	return file
}
