package extract

import (
	"errors"
	"fmt"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// Extraction failure kinds. Match them with errors.Is against an
// *ExtractionError.
var (
	ErrNavigationFailed = errors.New("navigation failed")
	ErrNotFound         = errors.New("price not found")
	ErrParseFailed      = errors.New("price not numeric")
)

// ExtractionError describes why a price could not be extracted.
type ExtractionError struct {
	Kind error
	URL  string
	Site domain.Site
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s (%s): %v", e.Site, e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s (%s)", e.Site, e.URL, e.Kind)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindLabel returns a short label for the failure kind, suitable for
// metrics and history records.
func KindLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNavigationFailed):
		return "navigation_failed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrParseFailed):
		return "parse_failed"
	default:
		return "unknown"
	}
}

func newError(kind error, url string, site domain.Site, cause error) *ExtractionError {
	return &ExtractionError{Kind: kind, URL: url, Site: site, Err: cause}
}
