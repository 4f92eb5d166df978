package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/kopimap/internal/core/domain"
	"github.com/samirrijal/kopimap/internal/core/ports"
	"github.com/samirrijal/kopimap/internal/pkg/metrics"
)

const visitedFlag = "visited"

// VisitServiceOptions wires the stores behind VisitService.
type VisitServiceOptions struct {
	// Counter is the shared store; nil means only Fallback is used.
	Counter ports.VisitCounterStore
	// Fallback takes over when Counter errors. Required.
	Fallback ports.VisitCounterStore
	// Flags holds the once-per-session flag; nil means only FallbackFlags.
	Flags ports.SessionFlags
	// FallbackFlags takes over when Flags errors. Required.
	FallbackFlags ports.SessionFlags
	Events        ports.EventPublisher
	Location      *time.Location
	Now           func() time.Time
}

// VisitService counts one visit per browser session and pushes counter
// changes to subscribers.
type VisitService struct {
	counter       ports.VisitCounterStore
	fallback      ports.VisitCounterStore
	flags         ports.SessionFlags
	fallbackFlags ports.SessionFlags
	events        ports.EventPublisher
	loc           *time.Location
	now           func() time.Time

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(domain.VisitStats)
}

// NewVisitService creates a new VisitService.
func NewVisitService(opts VisitServiceOptions) *VisitService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &VisitService{
		counter:       opts.Counter,
		fallback:      opts.Fallback,
		flags:         opts.Flags,
		fallbackFlags: opts.FallbackFlags,
		events:        opts.Events,
		loc:           opts.Location,
		now:           opts.Now,
		subs:          make(map[uint64]func(domain.VisitStats)),
	}
}

// Today is the counter day in the configured zone (YYYY-MM-DD).
func (s *VisitService) Today() string {
	return s.now().In(s.loc).Format("2006-01-02")
}

// RecordVisit counts a visit for sessionID. Only the first call per session
// increments; later calls return the current snapshot with counted=false.
func (s *VisitService) RecordVisit(ctx context.Context, sessionID string) (stats domain.VisitStats, counted bool, err error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.VisitStats{}, false, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}

	first, err := s.setOnce(ctx, sessionID)
	if err != nil {
		return domain.VisitStats{}, false, err
	}
	if !first {
		stats, err = s.Snapshot(ctx)
		return stats, false, err
	}

	day := s.Today()
	store := "primary"
	if s.counter != nil {
		stats, err = s.counter.Increment(ctx, day)
		if err != nil {
			slog.WarnContext(ctx, "visit counter unavailable, using local fallback", "error", err)
		}
	}
	if s.counter == nil || err != nil {
		store = "fallback"
		stats, err = s.fallback.Increment(ctx, day)
		if err != nil {
			return domain.VisitStats{}, false, fmt.Errorf("increment visits: %w", err)
		}
	}
	metrics.VisitsRecorded.WithLabelValues(store).Inc()

	s.Broadcast(stats)
	if s.events != nil {
		if perr := s.events.PublishVisitStats(ctx, stats); perr != nil {
			slog.WarnContext(ctx, "publish visit stats failed", "error", perr)
		}
	}
	return stats, true, nil
}

func (s *VisitService) setOnce(ctx context.Context, sessionID string) (bool, error) {
	if s.flags != nil {
		first, err := s.flags.SetOnce(ctx, sessionID, visitedFlag)
		if err == nil {
			return first, nil
		}
		slog.WarnContext(ctx, "session flags unavailable, using local fallback", "error", err)
	}
	first, err := s.fallbackFlags.SetOnce(ctx, sessionID, visitedFlag)
	if err != nil {
		return false, fmt.Errorf("session flag: %w", err)
	}
	return first, nil
}

// Snapshot reads the counters for today.
func (s *VisitService) Snapshot(ctx context.Context) (domain.VisitStats, error) {
	day := s.Today()
	if s.counter != nil {
		stats, err := s.counter.Snapshot(ctx, day)
		if err == nil {
			return stats, nil
		}
		slog.WarnContext(ctx, "visit counter unavailable, using local fallback", "error", err)
	}
	stats, err := s.fallback.Snapshot(ctx, day)
	if err != nil {
		return domain.VisitStats{}, fmt.Errorf("read visits: %w", err)
	}
	return stats, nil
}

// Subscribe registers fn for every counter change and returns the function
// that removes it. fn must not block.
func (s *VisitService) Subscribe(fn func(domain.VisitStats)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Broadcast hands stats to every subscriber. It is also the entry point for
// changes made on other instances.
func (s *VisitService) Broadcast(stats domain.VisitStats) {
	s.mu.RLock()
	fns := make([]func(domain.VisitStats), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(stats)
	}
}

// Subscribers returns the number of live subscriptions.
func (s *VisitService) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
