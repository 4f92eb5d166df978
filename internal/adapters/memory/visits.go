// Package memory holds in-process stand-ins used when Valkey is unreachable.
// State lives for the life of the process and is not shared between
// instances.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

// VisitCounter implements ports.VisitCounterStore in memory.
type VisitCounter struct {
	mu    sync.Mutex
	total int64
	daily map[string]int64
}

// NewVisitCounter creates an empty counter.
func NewVisitCounter() *VisitCounter {
	return &VisitCounter{daily: make(map[string]int64)}
}

// Increment adds one visit to the total and to day's counter.
func (v *VisitCounter) Increment(_ context.Context, day string) (domain.VisitStats, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.total++
	v.daily[day]++
	return domain.VisitStats{Today: v.daily[day], Total: v.total, Date: day}, nil
}

// Snapshot reads both counters.
func (v *VisitCounter) Snapshot(_ context.Context, day string) (domain.VisitStats, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return domain.VisitStats{Today: v.daily[day], Total: v.total, Date: day}, nil
}

// SessionFlags implements ports.SessionFlags in memory.
type SessionFlags struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	flags map[string]time.Time // key → expiry
}

// NewSessionFlags creates flags expiring after ttl. A zero ttl never expires.
func NewSessionFlags(ttl time.Duration) *SessionFlags {
	return &SessionFlags{ttl: ttl, now: time.Now, flags: make(map[string]time.Time)}
}

// SetOnce reports true only for the first call per session and flag.
func (s *SessionFlags) SetOnce(_ context.Context, sessionID, flag string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := sessionID + ":" + flag
	if exp, ok := s.flags[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}

	var exp time.Time
	if s.ttl > 0 {
		exp = now.Add(s.ttl)
	}
	s.flags[key] = exp
	s.sweep(now)
	return true, nil
}

// sweep drops expired flags once the map grows.
func (s *SessionFlags) sweep(now time.Time) {
	if len(s.flags) < 4096 {
		return
	}
	for k, exp := range s.flags {
		if !exp.IsZero() && !now.Before(exp) {
			delete(s.flags, k)
		}
	}
}
