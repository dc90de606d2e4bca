package discord

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/dkeye/lfg/internal/domain"
)

// UserLimiter throttles interactions per guild member with a token bucket.
type UserLimiter struct {
	mu       sync.Mutex
	limiters map[domain.UserKey]*userBucket
	limit    rate.Limit
	burst    int
	clock    clock.Clock
}

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewUserLimiter(perSecond float64, burst int, clk clock.Clock) *UserLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &UserLimiter{
		limiters: make(map[domain.UserKey]*userBucket),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		clock:    clk,
	}
}

func (l *UserLimiter) Allow(key domain.UserKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b, ok := l.limiters[key]
	if !ok {
		b = &userBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Prune drops the buckets of users idle for longer than idle.
func (l *UserLimiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.clock.Now().Add(-idle)
	n := 0
	for key, b := range l.limiters {
		if b.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			n++
		}
	}
	return n
}

func (l *UserLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
