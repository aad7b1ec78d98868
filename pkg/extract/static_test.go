package extract_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/price-monitor/pkg/extract"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

const productPage = `<!doctype html>
<html>
<head>
  <meta property="product:price:amount" content="1499.00">
</head>
<body>
  <div class="price-block">
    <ins class="price-block__final-price"> 1 299 ₽ </ins>
  </div>
  <span class="empty"></span>
</body>
</html>`

func newProductServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStaticRenderer_Text(t *testing.T) {
	t.Parallel()

	srv := newProductServer(t, http.StatusOK, productPage)
	r := extract.NewStaticRenderer(extract.WithUserAgent("price-monitor-test"))
	assert.Equal(t, "static", r.Name())

	session, err := r.Launch(context.Background())
	require.NoError(t, err)
	defer func() { require.NoError(t, session.Close()) }()

	page, err := session.Navigate(context.Background(), srv.URL)
	require.NoError(t, err)

	text, err := page.Text(context.Background(), ".price-block__final-price")
	require.NoError(t, err)
	assert.Equal(t, "1 299 ₽", text)

	text, err = page.Text(context.Background(), `meta[property="product:price:amount"]`)
	require.NoError(t, err)
	assert.Equal(t, "1499.00", text)

	text, err = page.Text(context.Background(), ".empty")
	require.NoError(t, err)
	assert.Empty(t, text)

	_, err = page.Text(context.Background(), ".missing")
	assert.ErrorIs(t, err, extract.ErrNoMatch)
}

func TestStaticRenderer_NavigateErrorStatus(t *testing.T) {
	t.Parallel()

	srv := newProductServer(t, http.StatusServiceUnavailable, "busy")
	session, err := extract.NewStaticRenderer().Launch(context.Background())
	require.NoError(t, err)
	defer session.Close()

	_, err = session.Navigate(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestStaticRenderer_NavigateAfterClose(t *testing.T) {
	t.Parallel()

	session, err := extract.NewStaticRenderer().Launch(context.Background())
	require.NoError(t, err)
	require.NoError(t, session.Close())

	_, err = session.Navigate(context.Background(), "http://127.0.0.1:1/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session closed")
}

func TestStaticRenderer_WithPageExtractor(t *testing.T) {
	t.Parallel()

	srv := newProductServer(t, http.StatusOK, productPage)

	reg := extract.NewRegistry()
	require.NoError(t, reg.Register(&extract.Strategy{
		Site:      domain.SiteWildberries,
		Locators:  []string{".price-block__final-price", ".price"},
		Normalize: extract.WholeUnits,
		Timeout:   5 * time.Second,
	}))

	e := extract.NewPageExtractor(
		extract.NewStaticRenderer(extract.WithRequestTimeout(5*time.Second)),
		extract.WithRegistry(reg),
		extract.WithSiteLimiter(extract.NewSiteLimiter(100, 1)),
		extract.WithLogger(quietLogger()),
	)

	price, err := e.Extract(context.Background(), srv.URL+"/catalog/1", domain.SiteWildberries)
	require.NoError(t, err)
	assert.Equal(t, domain.Price(129900), price)
}
