// Package manager implements the subscription command surface: subscribe,
// unsubscribe, list and manual checks. The HTTP API and the CLI both go
// through it.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/donaldgifford/price-monitor/internal/store"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// Validation errors returned by Subscribe and Unsubscribe.
var (
	ErrInvalidOwner  = errors.New("owner is required")
	ErrInvalidURL    = errors.New("url must be an absolute http(s) url")
	ErrInvalidSite   = errors.New("unknown site")
	ErrInvalidTarget = errors.New("target price must be positive")
	ErrInvalidStatus = errors.New("unknown status")
	ErrBadReference  = errors.New("no subscription at that position")
)

// SiteDetector infers a site from a product URL.
type SiteDetector interface {
	DetectSite(rawURL string) domain.Site
}

// Checker runs a poll cycle on demand.
type Checker interface {
	CheckNow(ctx context.Context) (domain.CycleSummary, error)
}

// Manager validates commands and applies them to the store.
type Manager struct {
	store    store.Store
	detector SiteDetector
	checker  Checker
	log      *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// New creates a Manager.
func New(s store.Store, d SiteDetector, c Checker, opts ...Option) *Manager {
	m := &Manager{
		store:    s,
		detector: d,
		checker:  c,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SubscribeRequest holds the arguments of Subscribe. An empty Site is
// detected from the URL.
type SubscribeRequest struct {
	Owner       string
	URL         string
	Site        domain.Site
	TargetPrice *domain.Price
}

// Subscribe starts tracking a URL for an owner. Subscribing again to the
// same URL updates the target price and reactivates the subscription.
func (m *Manager) Subscribe(ctx context.Context, req SubscribeRequest) (*domain.Subscription, error) {
	owner := strings.TrimSpace(req.Owner)
	rawURL := strings.TrimSpace(req.URL)

	var errs []error
	if owner == "" {
		errs = append(errs, ErrInvalidOwner)
	}
	if !validURL(rawURL) {
		errs = append(errs, ErrInvalidURL)
	}
	if req.Site != "" && !req.Site.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidSite, req.Site))
	}
	if req.TargetPrice != nil && *req.TargetPrice <= 0 {
		errs = append(errs, ErrInvalidTarget)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	site := req.Site
	if site == "" {
		site = m.detector.DetectSite(rawURL)
	}

	sub := &domain.Subscription{
		Owner:       owner,
		URL:         rawURL,
		Site:        site,
		TargetPrice: req.TargetPrice,
		Status:      domain.StatusActive,
	}
	if err := m.store.Subscribe(ctx, sub); err != nil {
		return nil, fmt.Errorf("subscribing: %w", err)
	}

	m.log.Info("subscribed", "owner", owner, "url", rawURL, "site", site, "id", sub.ID)
	return sub, nil
}

// Unsubscribe stops tracking a subscription of owner. ref is either the
// 1-based position in List(owner) or the product URL.
func (m *Manager) Unsubscribe(ctx context.Context, owner, ref string) (*domain.Subscription, error) {
	owner = strings.TrimSpace(owner)
	ref = strings.TrimSpace(ref)
	if owner == "" {
		return nil, ErrInvalidOwner
	}

	subs, err := m.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}

	target, err := resolve(subs, ref)
	if err != nil {
		return nil, err
	}

	if err := m.store.Unsubscribe(ctx, owner, target.URL); err != nil {
		return nil, fmt.Errorf("unsubscribing: %w", err)
	}

	m.log.Info("unsubscribed", "owner", owner, "url", target.URL, "id", target.ID)
	return target, nil
}

func resolve(subs []domain.Subscription, ref string) (*domain.Subscription, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(subs) {
			return nil, fmt.Errorf("%w: %d of %d", ErrBadReference, n, len(subs))
		}
		return &subs[n-1], nil
	}

	for i := range subs {
		if subs[i].URL == ref {
			return &subs[i], nil
		}
	}
	return nil, fmt.Errorf("subscription %q: %w", ref, store.ErrNotFound)
}

// List returns every subscription of owner in the order used by
// positional Unsubscribe.
func (m *Manager) List(ctx context.Context, owner string) ([]domain.Subscription, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrInvalidOwner
	}
	subs, err := m.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return subs, nil
}

// Get returns a subscription by id.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	return m.store.GetSubscription(ctx, id)
}

// SetStatus pauses or resumes a subscription.
func (m *Manager) SetStatus(ctx context.Context, id string, status domain.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := m.store.SetStatus(ctx, id, status); err != nil {
		return err
	}
	m.log.Info("subscription status changed", "id", id, "status", status)
	return nil
}

// History returns the newest archived change events of a subscription.
func (m *Manager) History(ctx context.Context, id string, limit int) ([]domain.ChangeEvent, error) {
	if _, err := m.store.GetSubscription(ctx, id); err != nil {
		return nil, err
	}
	return m.store.ListHistory(ctx, id, limit)
}

// CheckNow runs one poll cycle and reports what it did.
func (m *Manager) CheckNow(ctx context.Context) (domain.CycleSummary, error) {
	return m.checker.CheckNow(ctx)
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
