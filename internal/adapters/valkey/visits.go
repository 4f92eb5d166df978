package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

const (
	totalVisitsKey = "visitStats:totalVisits"
	dailyKeyPrefix = "visitStats:dailyVisits:"
)

// DailyVisitsKey is the counter key for one calendar day (YYYY-MM-DD).
func DailyVisitsKey(day string) string {
	return dailyKeyPrefix + day
}

// VisitCounter implements ports.VisitCounterStore. Both counters are bumped
// inside one MULTI/EXEC so concurrent writers never lose an update.
type VisitCounter struct {
	c *Client
}

// NewVisitCounter creates a VisitCounter.
func NewVisitCounter(c *Client) *VisitCounter {
	return &VisitCounter{c: c}
}

// Increment adds one visit to the total and to day's counter.
func (v *VisitCounter) Increment(ctx context.Context, day string) (domain.VisitStats, error) {
	vc := v.c.client
	resps := vc.DoMulti(ctx,
		vc.B().Multi().Build(),
		vc.B().Incr().Key(totalVisitsKey).Build(),
		vc.B().Incr().Key(DailyVisitsKey(day)).Build(),
		vc.B().Exec().Build(),
	)
	for _, r := range resps {
		if err := r.Error(); err != nil {
			return domain.VisitStats{}, fmt.Errorf("incr visits: %w", err)
		}
	}

	results, err := resps[len(resps)-1].ToArray()
	if err != nil {
		return domain.VisitStats{}, fmt.Errorf("incr visits: exec reply: %w", err)
	}
	if len(results) != 2 {
		return domain.VisitStats{}, fmt.Errorf("incr visits: exec returned %d replies", len(results))
	}
	total, err := results[0].AsInt64()
	if err != nil {
		return domain.VisitStats{}, fmt.Errorf("incr visits: total: %w", err)
	}
	today, err := results[1].AsInt64()
	if err != nil {
		return domain.VisitStats{}, fmt.Errorf("incr visits: daily: %w", err)
	}
	return domain.VisitStats{Today: today, Total: total, Date: day}, nil
}

// Snapshot reads both counters. Missing keys count as zero.
func (v *VisitCounter) Snapshot(ctx context.Context, day string) (domain.VisitStats, error) {
	vc := v.c.client
	vals, err := vc.Do(ctx, vc.B().Mget().Key(totalVisitsKey, DailyVisitsKey(day)).Build()).ToArray()
	if err != nil {
		return domain.VisitStats{}, fmt.Errorf("read visits: %w", err)
	}
	counts := make([]int64, 2)
	for i := 0; i < len(vals) && i < 2; i++ {
		n, err := vals[i].AsInt64()
		if err != nil && !valkey.IsValkeyNil(err) {
			return domain.VisitStats{}, fmt.Errorf("read visits: %w", err)
		}
		counts[i] = n
	}
	return domain.VisitStats{Today: counts[1], Total: counts[0], Date: day}, nil
}

// SessionFlags implements ports.SessionFlags with SET NX EX.
type SessionFlags struct {
	c   *Client
	ttl time.Duration
}

// NewSessionFlags creates session flags that expire after ttl.
func NewSessionFlags(c *Client, ttl time.Duration) *SessionFlags {
	return &SessionFlags{c: c, ttl: ttl}
}

// SetOnce reports true only for the first call per session and flag.
func (s *SessionFlags) SetOnce(ctx context.Context, sessionID, flag string) (bool, error) {
	vc := s.c.client
	key := "visitSession:" + sessionID + ":" + flag
	err := vc.Do(ctx, vc.B().Set().Key(key).Value("1").Nx().Ex(s.ttl).Build()).Error()
	if valkey.IsValkeyNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("set session flag: %w", err)
	}
	return true, nil
}
