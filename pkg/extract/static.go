package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// StaticRenderer fetches pages over plain HTTP with colly and queries the
// returned HTML with goquery. It does not run JavaScript, so it only works
// for shops that render prices server-side.
type StaticRenderer struct {
	userAgent string
	timeout   time.Duration
}

// StaticOption configures a StaticRenderer.
type StaticOption func(*StaticRenderer)

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) StaticOption {
	return func(r *StaticRenderer) {
		r.userAgent = ua
	}
}

// WithRequestTimeout bounds each HTTP request.
func WithRequestTimeout(d time.Duration) StaticOption {
	return func(r *StaticRenderer) {
		r.timeout = d
	}
}

// NewStaticRenderer creates a StaticRenderer.
func NewStaticRenderer(opts ...StaticOption) *StaticRenderer {
	r := &StaticRenderer{
		userAgent: defaultUserAgent,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the renderer name.
func (*StaticRenderer) Name() string { return "static" }

// Launch creates a session backed by a fresh collector.
func (r *StaticRenderer) Launch(_ context.Context) (Session, error) {
	c := colly.NewCollector(
		colly.UserAgent(r.userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(r.timeout)
	return &staticSession{collector: c}, nil
}

type staticSession struct {
	collector *colly.Collector
	mu        sync.Mutex
	closed    bool
}

func (s *staticSession) Navigate(ctx context.Context, url string) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("session closed")
	}

	c := s.collector.Clone()
	c.Context = ctx

	var (
		doc     *goquery.Document
		httpErr error
	)
	c.OnHTML("html", func(e *colly.HTMLElement) {
		doc = goquery.NewDocumentFromNode(e.DOM.Nodes[0])
	})
	c.OnError(func(r *colly.Response, err error) {
		httpErr = fmt.Errorf("fetching %s (status %d): %w", url, r.StatusCode, err)
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("visiting %s: %w", url, err)
	}
	c.Wait()

	if httpErr != nil {
		return nil, httpErr
	}
	if doc == nil {
		return nil, fmt.Errorf("no HTML document at %s", url)
	}
	return &staticPage{doc: doc}, nil
}

func (s *staticSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type staticPage struct {
	doc *goquery.Document
}

func (p *staticPage) Text(_ context.Context, locator string) (string, error) {
	sel := p.doc.Find(locator).First()
	if sel.Length() == 0 {
		return "", ErrNoMatch
	}
	return selectionText(sel), nil
}

// selectionText returns the element text, falling back to the content
// attribute used by meta price tags.
func selectionText(sel *goquery.Selection) string {
	text := strings.TrimSpace(sel.Text())
	if text != "" {
		return text
	}
	return strings.TrimSpace(sel.AttrOr("content", ""))
}
