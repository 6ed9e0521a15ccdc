// Package core defines the ports between the service layer and its adapters.
package core

import (
	"context"
	"time"
)

// CacheRepository is a byte-oriented key/value cache in front of the reference tables.
// A miss is (nil, nil); errors are reserved for an unreachable or failing backend.
type CacheRepository interface {
	// Set stores value under key. A zero ttl keeps the key until it is deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	// DeletePrefix drops every key under prefix and reports how many went.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	Health(ctx context.Context) error
}
