package ai

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterSweepInterval = time.Minute

// Limiter throttles AI requests per user. A nil *Limiter allows everything.
type Limiter struct {
	mu        sync.Mutex
	limiters  map[int64]*rate.Limiter
	every     rate.Limit
	burst     int
	lastSweep time.Time
}

// NewLimiter allows perMinute generations per user with a burst of the same
// size. perMinute <= 0 disables limiting.
func NewLimiter(perMinute int) *Limiter {
	if perMinute <= 0 {
		return nil
	}
	return &Limiter{
		limiters: make(map[int64]*rate.Limiter),
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *Limiter) Allow(userID int64) bool {
	if l == nil {
		return true
	}
	return l.allowAt(userID, time.Now())
}

func (l *Limiter) allowAt(userID int64, now time.Time) bool {
	l.mu.Lock()
	l.sweep(now)
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.every, l.burst)
		l.limiters[userID] = limiter
	}
	l.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// sweep drops limiters that have refilled completely; a fresh one behaves
// the same. Callers hold l.mu.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < limiterSweepInterval {
		return
	}
	l.lastSweep = now
	for id, limiter := range l.limiters {
		if limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, id)
		}
	}
}
