package extract_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/price-monitor/pkg/extract"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

type fakeRenderer struct {
	launchErr error
	navErr    error
	navDelay  time.Duration
	texts     map[string]string
	textErrs  map[string]error

	launched atomic.Int32
	closed   atomic.Int32
}

func (r *fakeRenderer) Name() string { return "fake" }

func (r *fakeRenderer) Launch(_ context.Context) (extract.Session, error) {
	if r.launchErr != nil {
		return nil, r.launchErr
	}
	r.launched.Add(1)
	return &fakeSession{r: r}, nil
}

type fakeSession struct {
	r *fakeRenderer
}

func (s *fakeSession) Navigate(ctx context.Context, _ string) (extract.Page, error) {
	if s.r.navDelay > 0 {
		select {
		case <-time.After(s.r.navDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.r.navErr != nil {
		return nil, s.r.navErr
	}
	return &fakePage{r: s.r}, nil
}

func (s *fakeSession) Close() error {
	s.r.closed.Add(1)
	return nil
}

type fakePage struct {
	r *fakeRenderer
}

func (p *fakePage) Text(_ context.Context, locator string) (string, error) {
	if err, ok := p.r.textErrs[locator]; ok {
		return "", err
	}
	text, ok := p.r.texts[locator]
	if !ok {
		return "", extract.ErrNoMatch
	}
	return text, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *extract.Registry {
	t.Helper()

	r := extract.NewRegistry()
	require.NoError(t, r.Register(&extract.Strategy{
		Site:           domain.SiteOzon,
		Locators:       []string{".primary", ".legacy", ".price"},
		Normalize:      extract.WholeUnits,
		Timeout:        50 * time.Millisecond,
		LocatorTimeout: 20 * time.Millisecond,
	}))
	require.NoError(t, r.Register(&extract.Strategy{
		Site:      domain.SiteGeneric,
		Locators:  []string{".price"},
		Normalize: extract.DecimalUnits,
	}))
	return r
}

func TestPageExtractor_Extract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		url      string
		site     domain.Site
		renderer *fakeRenderer
		want     domain.Price
		wantKind error
		launched int32
	}{
		{
			name:     "primary locator wins",
			url:      "https://ozon.ru/p/1",
			site:     domain.SiteOzon,
			renderer: &fakeRenderer{texts: map[string]string{".primary": "1 299 ₽", ".price": "5"}},
			want:     129900,
			launched: 1,
		},
		{
			name:     "falls back to legacy layout",
			url:      "https://ozon.ru/p/1",
			site:     domain.SiteOzon,
			renderer: &fakeRenderer{texts: map[string]string{".legacy": "450 ₽"}},
			want:     45000,
			launched: 1,
		},
		{
			name: "empty text skipped",
			url:  "https://ozon.ru/p/1",
			site: domain.SiteOzon,
			renderer: &fakeRenderer{texts: map[string]string{
				".primary": "",
				".price":   "700",
			}},
			want:     70000,
			launched: 1,
		},
		{
			name: "zero price continues the chain",
			url:  "https://ozon.ru/p/1",
			site: domain.SiteOzon,
			renderer: &fakeRenderer{texts: map[string]string{
				".primary": "0 ₽",
				".legacy":  "350 ₽",
			}},
			want:     35000,
			launched: 1,
		},
		{
			name:     "unknown site uses generic strategy",
			url:      "https://example.com/p/1",
			site:     domain.SiteWildberries,
			renderer: &fakeRenderer{texts: map[string]string{".price": "$12.99"}},
			want:     1299,
			launched: 1,
		},
		{
			name:     "no locator matched",
			url:      "https://ozon.ru/p/1",
			site:     domain.SiteOzon,
			renderer: &fakeRenderer{},
			wantKind: extract.ErrNotFound,
			launched: 1,
		},
		{
			name:     "only zero prices",
			url:      "https://ozon.ru/p/1",
			site:     domain.SiteOzon,
			renderer: &fakeRenderer{texts: map[string]string{".primary": "0"}},
			wantKind: extract.ErrNotFound,
			launched: 1,
		},
		{
			name:     "matched text not numeric",
			url:      "https://ozon.ru/p/1",
			site:     domain.SiteOzon,
			renderer: &fakeRenderer{texts: map[string]string{".primary": "Нет в наличии"}},
			wantKind: extract.ErrParseFailed,
			launched: 1,
		},
		{
			name: "locator error skipped",
			url:  "https://ozon.ru/p/1",
			site: domain.SiteOzon,
			renderer: &fakeRenderer{
				texts:    map[string]string{".legacy": "99"},
				textErrs: map[string]error{".primary": errors.New("devtools closed")},
			},
			want:     9900,
			launched: 1,
		},
		{
			name:     "navigation error",
			url:      "https://ozon.ru/p/1",
			site:     domain.SiteOzon,
			renderer: &fakeRenderer{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")},
			wantKind: extract.ErrNavigationFailed,
			launched: 1,
		},
		{
			name:     "navigation timeout",
			url:      "https://ozon.ru/p/1",
			site:     domain.SiteOzon,
			renderer: &fakeRenderer{navDelay: time.Second},
			wantKind: extract.ErrNavigationFailed,
			launched: 1,
		},
		{
			name:     "launch error",
			url:      "https://ozon.ru/p/1",
			site:     domain.SiteOzon,
			renderer: &fakeRenderer{launchErr: errors.New("chrome not found")},
			wantKind: extract.ErrNavigationFailed,
		},
		{
			name:     "relative url rejected",
			url:      "/p/1",
			site:     domain.SiteOzon,
			renderer: &fakeRenderer{},
			wantKind: extract.ErrNavigationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := extract.NewPageExtractor(tt.renderer,
				extract.WithRegistry(testRegistry(t)),
				extract.WithLogger(quietLogger()),
			)

			got, err := e.Extract(context.Background(), tt.url, tt.site)
			if tt.wantKind != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantKind)

				var exErr *extract.ExtractionError
				require.ErrorAs(t, err, &exErr)
				assert.Equal(t, tt.url, exErr.URL)
				assert.Equal(t, domain.Price(0), got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.Equal(t, tt.launched, tt.renderer.launched.Load())
			assert.Equal(t, tt.renderer.launched.Load(), tt.renderer.closed.Load(),
				"every launched session must be closed")
		})
	}
}

func TestPageExtractor_CancelledContext(t *testing.T) {
	t.Parallel()

	r := &fakeRenderer{texts: map[string]string{".primary": "100"}}
	e := extract.NewPageExtractor(r,
		extract.WithRegistry(testRegistry(t)),
		extract.WithLogger(quietLogger()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, "https://ozon.ru/p/1", domain.SiteOzon)
	require.ErrorIs(t, err, extract.ErrNavigationFailed)
	assert.Equal(t, r.launched.Load(), r.closed.Load())
}

func TestPageExtractor_DetectsSiteWhenEmpty(t *testing.T) {
	t.Parallel()

	r := &fakeRenderer{texts: map[string]string{".price-block__final-price": "1 299 ₽"}}
	e := extract.NewPageExtractor(r,
		extract.WithRegistry(extract.DefaultRegistry()),
		extract.WithLogger(quietLogger()),
	)

	price, err := e.Extract(context.Background(), "https://www.wildberries.ru/catalog/1/detail.aspx", "")
	require.NoError(t, err)
	assert.Equal(t, domain.Price(129900), price)
}

func TestKindLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&extract.ExtractionError{Kind: extract.ErrNavigationFailed}, "navigation_failed"},
		{&extract.ExtractionError{Kind: extract.ErrNotFound}, "not_found"},
		{&extract.ExtractionError{Kind: extract.ErrParseFailed, Err: errors.New("x")}, "parse_failed"},
		{errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, extract.KindLabel(tt.err))
	}
}

func TestExtractionError_Error(t *testing.T) {
	t.Parallel()

	err := &extract.ExtractionError{
		Kind: extract.ErrNotFound,
		URL:  "https://ozon.ru/p/1",
		Site: domain.SiteOzon,
	}
	assert.Equal(t, "ozon https://ozon.ru/p/1 (price not found)", err.Error())

	err.Err = errors.New("layout changed")
	assert.Contains(t, err.Error(), "layout changed")
}
