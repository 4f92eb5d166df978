package ports

import (
	"context"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

// VisitCounterStore holds the visit counters. Increment must be atomic at
// the store level.
type VisitCounterStore interface {
	Increment(ctx context.Context, day string) (domain.VisitStats, error)
	Snapshot(ctx context.Context, day string) (domain.VisitStats, error)
}

// SessionFlags records one-shot flags scoped to a browser session.
type SessionFlags interface {
	// SetOnce sets the flag and reports whether this call was the first.
	SetOnce(ctx context.Context, sessionID, flag string) (bool, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishVisitStats(ctx context.Context, stats domain.VisitStats) error
	PublishCatalogChanged(ctx context.Context, reason string) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
