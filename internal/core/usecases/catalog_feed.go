package usecases

import (
	"context"
	"sync"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/ports"
)

// CatalogFeed fans "the visible list changed" notices out to the clients
// connected to this instance.
type CatalogFeed struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(reason string)
}

// NewCatalogFeed creates an empty feed.
func NewCatalogFeed() *CatalogFeed {
	return &CatalogFeed{subs: make(map[uint64]func(string))}
}

// Subscribe registers fn and returns the function that removes it. fn must
// not block.
func (f *CatalogFeed) Subscribe(fn func(reason string)) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Notify calls every subscriber with reason.
func (f *CatalogFeed) Notify(reason string) {
	f.mu.RLock()
	fns := make([]func(string), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(reason)
	}
}

// localEvents delivers catalog changes to this instance's feed before
// handing every event to the remote publisher.
type localEvents struct {
	feed   *CatalogFeed
	remote ports.EventPublisher
}

// NewLocalEvents wraps remote (which may be nil) so catalog changes also
// reach feed.
func NewLocalEvents(feed *CatalogFeed, remote ports.EventPublisher) ports.EventPublisher {
	return &localEvents{feed: feed, remote: remote}
}

func (e *localEvents) PublishVisitStats(ctx context.Context, stats domain.VisitStats) error {
	if e.remote == nil {
		return nil
	}
	return e.remote.PublishVisitStats(ctx, stats)
}

func (e *localEvents) PublishCatalogChanged(ctx context.Context, reason string) error {
	e.feed.Notify(reason)
	if e.remote == nil {
		return nil
	}
	return e.remote.PublishCatalogChanged(ctx, reason)
}
