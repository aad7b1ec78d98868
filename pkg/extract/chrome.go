package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const pollInterval = 250 * time.Millisecond

// ChromeRenderer renders pages in headless Chrome through the DevTools
// protocol. Every session owns its own browser process so a crashed tab
// never leaks into the next extraction.
type ChromeRenderer struct {
	execPath  string
	userAgent string
	headless  bool
}

// ChromeOption configures a ChromeRenderer.
type ChromeOption func(*ChromeRenderer)

// WithExecPath sets the Chrome binary path. Empty uses chromedp's lookup.
func WithExecPath(p string) ChromeOption {
	return func(r *ChromeRenderer) {
		r.execPath = p
	}
}

// WithChromeUserAgent overrides the browser User-Agent.
func WithChromeUserAgent(ua string) ChromeOption {
	return func(r *ChromeRenderer) {
		r.userAgent = ua
	}
}

// WithHeadless toggles headless mode.
func WithHeadless(h bool) ChromeOption {
	return func(r *ChromeRenderer) {
		r.headless = h
	}
}

// NewChromeRenderer creates a ChromeRenderer.
func NewChromeRenderer(opts ...ChromeOption) *ChromeRenderer {
	r := &ChromeRenderer{
		userAgent: defaultUserAgent,
		headless:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the renderer name.
func (*ChromeRenderer) Name() string { return "chrome" }

// Launch starts a browser and opens a tab. The returned session is bound
// to ctx: cancelling ctx tears the browser down as well.
func (r *ChromeRenderer) Launch(ctx context.Context) (Session, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{},
		chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", r.headless),
		chromedp.UserAgent(r.userAgent),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)
	if r.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Run with no actions starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &chromeSession{
		tab: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}, nil
}

type chromeSession struct {
	tab    context.Context
	cancel context.CancelFunc
}

func (s *chromeSession) Navigate(ctx context.Context, url string) (Page, error) {
	runCtx, cancel := bound(s.tab, ctx)
	defer cancel()

	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}
	return &chromePage{tab: s.tab}, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

type chromePage struct {
	tab context.Context
}

// Text polls the DOM until locator resolves to non-empty text or ctx ends.
// Prices on client-rendered shops appear some time after DOM ready.
func (p *chromePage) Text(ctx context.Context, locator string) (string, error) {
	sel, err := json.Marshal(locator)
	if err != nil {
		return "", fmt.Errorf("encoding locator: %w", err)
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return "";
		return (el.textContent || el.getAttribute("content") || "").trim();
	})()`, sel)

	runCtx, cancel := bound(p.tab, ctx)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		var text string
		if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &text)); err != nil {
			if runCtx.Err() != nil {
				return "", ErrNoMatch
			}
			return "", fmt.Errorf("evaluating locator %q: %w", locator, err)
		}
		if text != "" {
			return text, nil
		}

		select {
		case <-runCtx.Done():
			return "", ErrNoMatch
		case <-ticker.C:
		}
	}
}

// bound derives a context from the chromedp tab context that also honours
// the deadline and cancellation of the caller's ctx.
func bound(tab, ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(tab, deadline)
	} else {
		runCtx, cancel = context.WithCancel(tab)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
