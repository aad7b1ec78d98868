// Package domain defines the core business types for the price monitor.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Site identifies the shop a tracked URL belongs to. It selects the
// extraction strategy used for the URL.
type Site string

// Site constants.
const (
	SiteWildberries Site = "wildberries"
	SiteOzon        Site = "ozon"
	SiteAliExpress  Site = "aliexpress"
	SiteGeneric     Site = "generic"
)

// Sites lists every known site identifier.
var Sites = []Site{SiteWildberries, SiteOzon, SiteAliExpress, SiteGeneric}

// Valid reports whether s is a known site identifier.
func (s Site) Valid() bool {
	switch s {
	case SiteWildberries, SiteOzon, SiteAliExpress, SiteGeneric:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a subscription.
type Status string

// Status constants.
const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusPaused
}

// Price is an amount in minor currency units (kopecks, cents).
// Prices are always compared as integers so formatting differences on the
// source page never register as a change.
type Price int64

// PriceOf returns a pointer to a Price holding v minor units.
func PriceOf(v int64) *Price {
	p := Price(v)
	return &p
}

// Decimal returns the price in major units.
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

// String formats the price in major units with two fractional digits.
func (p Price) String() string {
	return p.Decimal().StringFixed(2)
}

// ParsePrice parses an amount in major units such as "499.90" or "1500".
// More than two fractional digits and non-positive amounts are rejected.
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing price %q: %w", s, err)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("price %q must be positive", s)
	}
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("price %q has more than two fractional digits", s)
	}
	return Price(minor.IntPart()), nil
}

// Subscription links an owner to a tracked product URL.
type Subscription struct {
	ID            string     `json:"id"                        db:"id"`
	Owner         string     `json:"owner"                     db:"owner"`
	URL           string     `json:"url"                       db:"url"`
	Site          Site       `json:"site"                      db:"site"`
	TargetPrice   *Price     `json:"target_price,omitempty"    db:"target_price"`
	LastPrice     *Price     `json:"last_price,omitempty"      db:"last_price"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty" db:"last_checked_at"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty" db:"last_updated_at"`
	Status        Status     `json:"status"                    db:"status"`
	CreatedAt     time.Time  `json:"created_at"                db:"created_at"`
}

// PriceObservation is the outcome of one extraction attempt.
type PriceObservation struct {
	URL           string    `json:"url"`
	Site          Site      `json:"site"`
	Price         Price     `json:"price"`
	ObservedAt    time.Time `json:"observed_at"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// Classification is the outcome of comparing an observation to the
// previously known price.
type Classification string

// Classification constants.
const (
	ClassUnchanged        Classification = "unchanged"
	ClassIncreased        Classification = "increased"
	ClassDecreased        Classification = "decreased"
	ClassThresholdCrossed Classification = "threshold_crossed"
	ClassExtractionFailed Classification = "extraction_failed"
)

// ChangeEvent records the classification of one observation for one
// subscription. Events are append-only history.
type ChangeEvent struct {
	ID             int64          `json:"id,omitempty"            db:"id"`
	SubscriptionID string         `json:"subscription_id"         db:"subscription_id"`
	Previous       *Price         `json:"previous,omitempty"      db:"previous_price"`
	New            *Price         `json:"new,omitempty"           db:"new_price"`
	Classification Classification `json:"classification"          db:"classification"`
	Baseline       bool           `json:"baseline"                db:"baseline"`
	FailureReason  string         `json:"failure_reason,omitempty" db:"failure_reason"`
	GeneratedAt    time.Time      `json:"generated_at"            db:"generated_at"`
}

// Changed reports whether the event carries a price movement.
func (e *ChangeEvent) Changed() bool {
	switch e.Classification {
	case ClassIncreased, ClassDecreased, ClassThresholdCrossed:
		return true
	default:
		return false
	}
}

// CycleSummary reports what one poll cycle did.
type CycleSummary struct {
	Checked   int           `json:"checked"`
	Changed   int           `json:"changed"`
	Failed    int           `json:"failed"`
	Notified  int           `json:"notified"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// JobRun records a single execution of a scheduled job.
type JobRun struct {
	ID           string     `json:"id"                      db:"id"`
	JobName      string     `json:"job_name"                db:"job_name"`
	StartedAt    time.Time  `json:"started_at"              db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"  db:"completed_at"`
	Status       string     `json:"status"                  db:"status"`
	ErrorText    string     `json:"error_text,omitempty"    db:"error_text"`
	RowsAffected *int       `json:"rows_affected,omitempty" db:"rows_affected"`
}
