package extract

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// SiteLimiter spaces out page loads per site. Each site gets its own token
// bucket so a slow shop never throttles the others.
type SiteLimiter struct {
	mu        sync.Mutex
	perSecond float64
	burst     int
	limiters  map[domain.Site]*rate.Limiter
}

// NewSiteLimiter creates a limiter allowing perSecond page loads per site
// with the given burst. A non-positive perSecond disables limiting.
func NewSiteLimiter(perSecond float64, burst int) *SiteLimiter {
	if burst < 1 {
		burst = 1
	}
	return &SiteLimiter{
		perSecond: perSecond,
		burst:     burst,
		limiters:  make(map[domain.Site]*rate.Limiter),
	}
}

// Wait blocks until a page load for site is allowed or ctx is done.
func (l *SiteLimiter) Wait(ctx context.Context, site domain.Site) error {
	if l == nil || l.perSecond <= 0 {
		return nil
	}
	if err := l.limiter(site).Wait(ctx); err != nil {
		return fmt.Errorf("site limiter wait: %w", err)
	}
	return nil
}

func (l *SiteLimiter) limiter(site domain.Site) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[site]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.perSecond), l.burst)
		l.limiters[site] = lim
	}
	return lim
}
