package scrape

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"

	"stackscout/internal/model"
)

// HostLimiter rate-limits per hostname so a batch of postings on the same
// career site does not hammer it.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewHostLimiter creates a limiter allowing reqPerSec requests with the given
// burst to each distinct host.
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(reqPerSec),
		burst:    burst,
	}
}

func (l *HostLimiter) limiterFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(l.rate, l.burst)
	l.limiters[host] = lim
	return lim
}

// WaitURL blocks until the host of raw may be hit again. Unparseable URLs
// share one bucket.
func (l *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return l.limiterFor("_").Wait(ctx)
	}
	return l.limiterFor(u.Host).Wait(ctx)
}

// RateLimitedFetcher is a decorator that enforces per-host rate limiting
// before delegating to the wrapped PageFetcher.
type RateLimitedFetcher struct {
	inner   model.PageFetcher
	limiter *HostLimiter
}

var _ model.PageFetcher = (*RateLimitedFetcher)(nil)

// NewRateLimitedFetcher wraps a PageFetcher with per-host rate limiting.
// Fetchers sharing a limiter instance share its budgets.
func NewRateLimitedFetcher(inner model.PageFetcher, limiter *HostLimiter) *RateLimitedFetcher {
	return &RateLimitedFetcher{inner: inner, limiter: limiter}
}

// FetchText waits for the host's limiter, then delegates to the wrapped fetcher.
func (f *RateLimitedFetcher) FetchText(ctx context.Context, url string) (string, error) {
	if err := f.limiter.WaitURL(ctx, url); err != nil {
		return "", err
	}
	return f.inner.FetchText(ctx, url)
}
