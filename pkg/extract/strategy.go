package extract

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// Default bounds for navigation and for each locator wait when a strategy
// does not set its own.
const (
	DefaultTimeout        = 15 * time.Second
	DefaultLocatorTimeout = 5 * time.Second
)

// Strategy describes how to find a price on one site. Locators are tried
// in order and the first one yielding a usable price wins, so the current
// layout goes first, then legacy layouts, then generic fallbacks.
type Strategy struct {
	Site      domain.Site
	Hosts     []string
	Locators  []string
	Normalize Normalizer

	// Timeout bounds navigation; LocatorTimeout bounds each locator wait.
	Timeout        time.Duration
	LocatorTimeout time.Duration
}

func (s *Strategy) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

func (s *Strategy) locatorTimeout() time.Duration {
	if s.LocatorTimeout > 0 {
		return s.LocatorTimeout
	}
	return DefaultLocatorTimeout
}

// Registry maps site identifiers to strategies. The generic strategy is
// used for sites without a registered strategy.
type Registry struct {
	mu         sync.RWMutex
	strategies map[domain.Site]*Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[domain.Site]*Strategy)}
}

// Register adds or replaces the strategy for s.Site.
func (r *Registry) Register(s *Strategy) error {
	if s.Site == "" {
		return fmt.Errorf("strategy site is required")
	}
	if len(s.Locators) == 0 {
		return fmt.Errorf("strategy %s: at least one locator is required", s.Site)
	}
	if s.Normalize == nil {
		s.Normalize = WholeUnits
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Site] = s
	return nil
}

// Lookup returns the strategy for site, falling back to the generic one.
func (r *Registry) Lookup(site domain.Site) (*Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.strategies[site]; ok {
		return s, true
	}
	s, ok := r.strategies[domain.SiteGeneric]
	return s, ok
}

// DetectSite infers the site identifier from the URL host. Unknown hosts
// map to the generic site.
func (r *Registry) DetectSite(rawURL string) domain.Site {
	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.SiteGeneric
	}
	host := strings.ToLower(u.Hostname())

	r.mu.RLock()
	defer r.mu.RUnlock()

	for site, s := range r.strategies {
		for _, h := range s.Hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return site
			}
		}
	}
	return domain.SiteGeneric
}

// genericLocators are tried last by every built-in strategy.
var genericLocators = []string{
	`[itemprop="price"]`,
	`meta[property="product:price:amount"]`,
	".price",
}

// DefaultRegistry returns a registry with the built-in shop strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range builtinStrategies() {
		// Built-in strategies are always valid.
		_ = r.Register(s)
	}
	return r
}

func builtinStrategies() []*Strategy {
	return []*Strategy{
		{
			Site:  domain.SiteWildberries,
			Hosts: []string{"wildberries.ru", "wb.ru"},
			Locators: withGeneric(
				".price-block__final-price",
				".price-block__wallet-price",
				"ins.price-block__final-price",
			),
			Normalize: WholeUnits,
			Timeout:   20 * time.Second,
		},
		{
			Site:  domain.SiteOzon,
			Hosts: []string{"ozon.ru"},
			Locators: withGeneric(
				`[data-widget="webPrice"] span`,
				".e1j9birj0",
			),
			Normalize: WholeUnits,
			Timeout:   20 * time.Second,
		},
		{
			Site:  domain.SiteAliExpress,
			Hosts: []string{"aliexpress.ru", "aliexpress.com", "aliexpress.us"},
			Locators: withGeneric(
				`[class*="price--currentPriceText"]`,
				".product-price-current",
				".uniform-banner-box-price",
			),
			Normalize: DecimalUnits,
		},
		{
			Site:      domain.SiteGeneric,
			Locators:  genericLocators,
			Normalize: DecimalUnits,
		},
	}
}

func withGeneric(locators ...string) []string {
	return append(locators, genericLocators...)
}
