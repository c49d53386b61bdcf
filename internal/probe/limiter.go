package probe

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateSettings configures token-bucket rate limiting per target host.
type RateSettings struct {
	Requests int
	Window   time.Duration
}

// Enabled reports whether the settings describe an active limit.
func (r RateSettings) Enabled() bool {
	return r.Requests > 0 && r.Window > 0
}

// HostLimiter throttles probe requests per host so a page full of links to
// one site does not hammer it. Hosts are tracked lazily.
type HostLimiter struct {
	settings RateSettings

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter; nil settings disable it entirely.
func NewHostLimiter(settings RateSettings) *HostLimiter {
	if !settings.Enabled() {
		return nil
	}
	return &HostLimiter{
		settings: settings,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the host's token bucket permits another request.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || host == "" {
		return nil
	}

	l.mu.Lock()
	limiter := l.ensureLimiterLocked(strings.ToLower(host))
	l.mu.Unlock()

	return limiter.Wait(ctx)
}

func (l *HostLimiter) ensureLimiterLocked(host string) *rate.Limiter {
	limiter, ok := l.limiters[host]
	if ok {
		return limiter
	}
	interval := l.settings.Window / time.Duration(l.settings.Requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	burst := l.settings.Requests
	if burst <= 0 {
		burst = 1
	}
	limiter = rate.NewLimiter(rate.Every(interval), burst)
	l.limiters[host] = limiter
	return limiter
}
