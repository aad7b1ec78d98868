package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

const tracerName = "github.com/donaldgifford/price-monitor/pkg/extract"

// PageExtractor implements Extractor by rendering the product page and
// walking the site's locator chain.
type PageExtractor struct {
	renderer Renderer
	registry *Registry
	limiter  *SiteLimiter
	log      *slog.Logger
	tracer   trace.Tracer
}

// PageExtractorOption configures the PageExtractor.
type PageExtractorOption func(*PageExtractor)

// WithRegistry sets the strategy registry.
func WithRegistry(r *Registry) PageExtractorOption {
	return func(e *PageExtractor) {
		e.registry = r
	}
}

// WithSiteLimiter sets the per-site page load limiter.
func WithSiteLimiter(l *SiteLimiter) PageExtractorOption {
	return func(e *PageExtractor) {
		e.limiter = l
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) PageExtractorOption {
	return func(e *PageExtractor) {
		e.log = l
	}
}

// NewPageExtractor creates a PageExtractor using the built-in strategies
// unless WithRegistry is given.
func NewPageExtractor(r Renderer, opts ...PageExtractorOption) *PageExtractor {
	e := &PageExtractor{
		renderer: r,
		registry: DefaultRegistry(),
		log:      slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the strategy registry in use.
func (e *PageExtractor) Registry() *Registry {
	return e.registry
}

// Extract renders rawURL and returns the first price found by the site's
// locator chain. Failures are returned as *ExtractionError.
func (e *PageExtractor) Extract(
	ctx context.Context,
	rawURL string,
	site domain.Site,
) (domain.Price, error) {
	ctx, span := e.tracer.Start(ctx, "extract.price", trace.WithAttributes(
		attribute.String("site", string(site)),
		attribute.String("url", rawURL),
	))
	defer span.End()

	price, err := e.extract(ctx, rawURL, site)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindLabel(err))
		return 0, err
	}

	span.SetAttributes(attribute.Int64("price", int64(price)))
	return price, nil
}

func (e *PageExtractor) extract(
	ctx context.Context,
	rawURL string,
	site domain.Site,
) (domain.Price, error) {
	if u, err := url.Parse(rawURL); err != nil || !u.IsAbs() || u.Host == "" {
		return 0, newError(ErrNavigationFailed, rawURL, site, fmt.Errorf("invalid url"))
	}
	if site == "" {
		site = e.registry.DetectSite(rawURL)
	}

	strategy, ok := e.registry.Lookup(site)
	if !ok {
		return 0, newError(ErrNotFound, rawURL, site, fmt.Errorf("no strategy registered"))
	}

	if err := e.limiter.Wait(ctx, strategy.Site); err != nil {
		return 0, newError(ErrNavigationFailed, rawURL, site, err)
	}

	session, err := e.renderer.Launch(ctx)
	if err != nil {
		return 0, newError(ErrNavigationFailed, rawURL, site,
			fmt.Errorf("launching %s session: %w", e.renderer.Name(), err))
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			e.log.Warn("closing render session failed", "url", rawURL, "error", cerr)
		}
	}()

	navCtx, cancel := context.WithTimeout(ctx, strategy.timeout())
	page, err := session.Navigate(navCtx, rawURL)
	cancel()
	if err != nil {
		return 0, newError(ErrNavigationFailed, rawURL, site, err)
	}

	return e.locate(ctx, page, rawURL, site, strategy)
}

func (e *PageExtractor) locate(
	ctx context.Context,
	page Page,
	rawURL string,
	site domain.Site,
	strategy *Strategy,
) (domain.Price, error) {
	var parseErr error

	for _, locator := range strategy.Locators {
		if ctx.Err() != nil {
			return 0, newError(ErrNavigationFailed, rawURL, site, ctx.Err())
		}

		lctx, cancel := context.WithTimeout(ctx, strategy.locatorTimeout())
		text, err := page.Text(lctx, locator)
		cancel()
		if err != nil {
			if !errors.Is(err, ErrNoMatch) && !errors.Is(err, context.DeadlineExceeded) {
				e.log.Debug("locator lookup failed", "url", rawURL, "locator", locator, "error", err)
			}
			continue
		}
		if text == "" {
			continue
		}

		price, err := strategy.Normalize(text)
		if err != nil {
			if errors.Is(err, ErrParseFailed) {
				parseErr = err
			}
			e.log.Debug("locator text rejected", "url", rawURL, "locator", locator, "text", text, "error", err)
			continue
		}

		e.log.Debug("price located", "url", rawURL, "locator", locator, "price", price.String())
		return price, nil
	}

	if ctx.Err() != nil {
		return 0, newError(ErrNavigationFailed, rawURL, site, ctx.Err())
	}
	if parseErr != nil {
		return 0, newError(ErrParseFailed, rawURL, site, parseErr)
	}
	return 0, newError(ErrNotFound, rawURL, site, nil)
}
