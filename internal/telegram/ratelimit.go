package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// chatLimiter is a per-chat token bucket for search commands.
type chatLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*limiterEntry
	r        rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newChatLimiter allows rpm requests per minute per chat with the given
// burst. rpm <= 0 disables limiting.
func newChatLimiter(rpm, burst int) *chatLimiter {
	if burst <= 0 {
		burst = 5
	}
	r := rate.Limit(0)
	if rpm > 0 {
		r = rate.Limit(float64(rpm) / 60.0)
	}
	return &chatLimiter{
		limiters: make(map[int64]*limiterEntry),
		r:        r,
		burst:    burst,
	}
}

func (l *chatLimiter) allow(chatID int64) bool {
	if l.r == 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[chatID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.r, l.burst)}
		l.limiters[chatID] = e
	}
	e.lastSeen = time.Now()
	if !e.limiter.Allow() {
		slog.Warn("search rate limited", "chat_id", chatID)
		return false
	}
	return true
}

// run drops idle buckets every five minutes until ctx is done.
func (l *chatLimiter) run(ctx context.Context) error {
	if l.r == 0 {
		return nil
	}
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.cleanup(time.Now().Add(-10 * time.Minute))
		}
	}
}

func (l *chatLimiter) cleanup(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, id)
		}
	}
}
