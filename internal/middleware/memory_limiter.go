package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	// hits holds the request times still inside each window, oldest first.
	hits     [][]time.Time
	lastSeen time.Time
}

// MemoryLimiter is a per-process sliding window limiter. It keeps a log of
// request times per client and window, the same way RedisLimiter keeps a
// sorted set.
type MemoryLimiter struct {
	mu       sync.Mutex
	windows  []Window
	visitors map[string]*visitor
	idleTTL  time.Duration
	sweeps   *rate.Limiter
	now      func() time.Time
}

// NewMemoryLimiter creates an in-process limiter for windows.
func NewMemoryLimiter(windows []Window) *MemoryLimiter {
	idle := time.Minute
	for _, w := range windows {
		if w.Period > idle {
			idle = w.Period
		}
	}
	return &MemoryLimiter{
		windows:  windows,
		visitors: make(map[string]*visitor),
		idleTTL:  idle,
		sweeps:   rate.NewLimiter(rate.Every(idle), 1),
		now:      time.Now,
	}
}

// Allow records a request for key if every window has room. Rejected
// requests are not recorded.
func (ml *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	if len(ml.windows) == 0 {
		return Decision{Allowed: true}, nil
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := ml.now()
	ml.sweep(now)
	v := ml.visitor(key, now)

	decisions := make([]Decision, 0, len(ml.windows))
	for i, w := range ml.windows {
		hits := expire(v.hits[i], now.Add(-w.Period))
		v.hits[i] = hits

		reset := now.Add(w.Period)
		if len(hits) > 0 {
			reset = hits[0].Add(w.Period)
		}
		if len(hits) >= w.Limit {
			return Decision{
				Allowed: false,
				Limit:   w.Limit,
				Reset:   reset,
				Period:  w.Period,
			}, nil
		}
		decisions = append(decisions, Decision{
			Allowed:   true,
			Limit:     w.Limit,
			Remaining: w.Limit - len(hits) - 1,
			Reset:     reset,
			Period:    w.Period,
		})
	}

	for i := range ml.windows {
		v.hits[i] = append(v.hits[i], now)
	}
	return tightest(decisions), nil
}

// expire drops hits at or before cutoff.
func expire(hits []time.Time, cutoff time.Time) []time.Time {
	n := 0
	for n < len(hits) && !hits[n].After(cutoff) {
		n++
	}
	if n == 0 {
		return hits
	}
	return append(hits[:0], hits[n:]...)
}

func (ml *MemoryLimiter) visitor(key string, now time.Time) *visitor {
	v, ok := ml.visitors[key]
	if !ok {
		v = &visitor{hits: make([][]time.Time, len(ml.windows))}
		ml.visitors[key] = v
	}
	v.lastSeen = now
	return v
}

// sweep drops visitors whose every window has emptied. It runs at most once
// per idleTTL.
func (ml *MemoryLimiter) sweep(now time.Time) {
	if !ml.sweeps.AllowN(now, 1) {
		return
	}
	for key, v := range ml.visitors {
		if now.Sub(v.lastSeen) >= ml.idleTTL {
			delete(ml.visitors, key)
		}
	}
}
