// Package extract pulls a normalized price out of a rendered product page.
// Rendering is abstracted behind the Renderer interface so the extraction
// logic can be exercised without a browser or network.
package extract

import (
	"context"
	"errors"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// ErrNoMatch is returned by Page.Text when the locator resolves to no element.
var ErrNoMatch = errors.New("locator matched no element")

// Renderer starts rendering sessions.
type Renderer interface {
	Launch(ctx context.Context) (Session, error)
	Name() string
}

// Session is a scoped rendering resource. Close must be called on every
// path once Launch succeeded.
type Session interface {
	Navigate(ctx context.Context, url string) (Page, error)
	Close() error
}

// Page is a rendered document.
type Page interface {
	// Text returns the trimmed text of the first element matching locator,
	// or ErrNoMatch.
	Text(ctx context.Context, locator string) (string, error)
}

// Extractor fetches the current price for a product URL.
type Extractor interface {
	Extract(ctx context.Context, url string, site domain.Site) (domain.Price, error)
}
