package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/samirrijal/kopimap/internal/pkg/metrics"
)

// SearchResult is one delivered search.
type SearchResult[T any] struct {
	Seq   uint64
	Query string
	Value T
	Err   error
}

// SearchSession serialises a client's type-ahead searches. Each Submit
// waits out the debounce, cancels whatever search is still running and
// bumps the sequence number. A result is delivered only while its sequence
// is the latest, so a slow older search can never replace a newer result.
type SearchSession[T any] struct {
	search   func(ctx context.Context, query string) (T, error)
	deliver  func(SearchResult[T])
	debounce time.Duration
	parent   context.Context

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	timer  *time.Timer
	closed bool

	// deliverMu keeps the latest-check and the delivery together.
	deliverMu sync.Mutex
}

// NewSearchSession creates a session. deliver is called from the search
// goroutine and may call Submit.
func NewSearchSession[T any](ctx context.Context, debounce time.Duration,
	search func(ctx context.Context, query string) (T, error),
	deliver func(SearchResult[T])) *SearchSession[T] {
	return &SearchSession[T]{
		search:   search,
		deliver:  deliver,
		debounce: debounce,
		parent:   ctx,
	}
}

// Submit schedules a search for query and returns its sequence number.
func (s *SearchSession[T]) Submit(query string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.seq
	}

	s.seq++
	seq := s.seq
	s.stopLocked()

	ctx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel
	s.timer = time.AfterFunc(s.debounce, func() { s.run(ctx, seq, query) })
	return seq
}

// Latest returns the sequence number of the newest submitted query.
func (s *SearchSession[T]) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Close cancels any pending or running search. Later results are dropped.
func (s *SearchSession[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.seq++
	s.stopLocked()
}

func (s *SearchSession[T]) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *SearchSession[T]) isLatest(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq == s.seq
}

func (s *SearchSession[T]) run(ctx context.Context, seq uint64, query string) {
	if ctx.Err() != nil {
		return
	}
	v, err := s.search(ctx, query)

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !s.isLatest(seq) {
		metrics.StaleSearchesDropped.Inc()
		return
	}
	s.deliver(SearchResult[T]{Seq: seq, Query: query, Value: v, Err: err})
}
