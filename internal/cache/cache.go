// Package cache holds TTL-bounded network reputation entries. The cache is a
// read-through optimization: entries are recomputable at any time and the
// engine treats a miss and an expired entry identically.
package cache

import (
	"context"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
)

type Cache interface {
	// Get returns the cached reputation, or nil when absent or expired.
	Get(ctx context.Context, key string) (*model.NetworkReputation, error)
	Set(ctx context.Context, key string, rep model.NetworkReputation, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
