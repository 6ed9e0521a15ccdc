package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/innovites/cableaudit/internal/core"
	"github.com/innovites/cableaudit/internal/domain/model"
)

// ReferenceCacheKeyPrefix namespaces every cached reference lookup.
const ReferenceCacheKeyPrefix = "cableaudit:reference:"

// missMarker records a cached "no such row" so unknown sizes do not hit Postgres every time.
var missMarker = []byte("null")

// CachedReferenceReaderOptions groups dependencies for NewCachedReferenceReader.
type CachedReferenceReaderOptions struct {
	Source core.ReferenceReader
	Cache  core.CacheRepository
	TTL    time.Duration
	Logger *slog.Logger
}

// CachedReferenceReader is a read-through cache in front of the reference tables.
// Cache failures degrade to direct reads; concurrent misses for one key share a single query.
type CachedReferenceReader struct {
	source core.ReferenceReader
	cache  core.CacheRepository
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedReferenceReader builds the reader. A nil cache makes it a pass-through.
func NewCachedReferenceReader(opts CachedReferenceReaderOptions) (*CachedReferenceReader, error) {
	if opts.Source == nil {
		return nil, errors.New("reference source is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedReferenceReader{
		source: opts.Source,
		cache:  opts.Cache,
		ttl:    opts.TTL,
		logger: logger.With("component", "reference_cache"),
	}, nil
}

// GetConductor implements core.ReferenceReader.
func (c *CachedReferenceReader) GetConductor(ctx context.Context, csa float64) (*model.ConductorSpec, error) {
	key := ReferenceCacheKeyPrefix + "conductor:" + model.FormatNumber(csa)
	return readThrough(ctx, c, key, func(ctx context.Context) (*model.ConductorSpec, error) {
		return c.source.GetConductor(ctx, csa)
	})
}

// GetInsulation implements core.ReferenceReader.
func (c *CachedReferenceReader) GetInsulation(ctx context.Context, csa float64) (*model.InsulationSpec, error) {
	key := ReferenceCacheKeyPrefix + "insulation:" + model.FormatNumber(csa)
	return readThrough(ctx, c, key, func(ctx context.Context) (*model.InsulationSpec, error) {
		return c.source.GetInsulation(ctx, csa)
	})
}

// Invalidate drops every cached lookup, used after the dataset is reseeded.
func (c *CachedReferenceReader) Invalidate(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	n, err := c.cache.DeletePrefix(ctx, ReferenceCacheKeyPrefix)
	if err != nil {
		return fmt.Errorf("invalidate reference cache: %w", err)
	}
	c.logger.InfoContext(ctx, "reference cache invalidated", "keys", n)
	return nil
}

func readThrough[T any](
	ctx context.Context,
	c *CachedReferenceReader,
	key string,
	load func(context.Context) (*T, error),
) (*T, error) {
	if c.cache == nil {
		return load(ctx)
	}

	if v, ok := cachedValue[T](ctx, c, key); ok {
		if v == nil {
			return nil, model.ErrReferenceNotFound
		}
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		v, loadErr := load(ctx)
		switch {
		case errors.Is(loadErr, model.ErrReferenceNotFound):
			c.store(ctx, key, missMarker)
			return (*T)(nil), nil
		case loadErr != nil:
			return nil, loadErr
		}
		if raw, mErr := json.Marshal(v); mErr == nil {
			c.store(ctx, key, raw)
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	v, _ := res.(*T)
	if v == nil {
		return nil, model.ErrReferenceNotFound
	}
	return v, nil
}

// cachedValue reports (value, true) on a hit. A hit on the miss marker yields (nil, true).
func cachedValue[T any](ctx context.Context, c *CachedReferenceReader, key string) (*T, bool) {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "reference cache read failed", "key", key, "error", err)
		return nil, false
	}
	if raw == nil {
		return nil, false
	}
	var v *T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.WarnContext(ctx, "reference cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return v, true
}

func (c *CachedReferenceReader) store(ctx context.Context, key string, raw []byte) {
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "reference cache write failed", "key", key, "error", err)
	}
}
