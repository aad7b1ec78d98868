// Package store defines the datastore abstraction for price-monitor.
// All business logic depends on the Store interface, never on concrete
// implementations. This enables mock-based testing without a running database.
package store

import (
	"context"
	"errors"
	"time"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// ErrNotFound is returned when a subscription or job run does not exist.
var ErrNotFound = errors.New("not found")

// SubscriptionQuery defines optional filters for subscription listings.
type SubscriptionQuery struct {
	Owner   *string
	Site    *string
	Status  *string
	Limit   int // default 50
	Offset  int
	OrderBy string // "created_at", "last_checked_at", "url"
}

// Store defines all data access operations for price-monitor.
type Store interface {
	// Subscriptions

	// Subscribe inserts s, or updates site, target price and status of the
	// existing row for (s.Owner, s.URL). The remaining fields of s are filled
	// from the stored row.
	Subscribe(ctx context.Context, s *domain.Subscription) error
	Unsubscribe(ctx context.Context, owner, url string) error
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	ListActive(ctx context.Context) ([]domain.Subscription, error)
	ListByOwner(ctx context.Context, owner string) ([]domain.Subscription, error)
	ListSubscriptions(ctx context.Context, q *SubscriptionQuery) ([]domain.Subscription, int, error)
	SetStatus(ctx context.Context, id string, status domain.Status) error

	// UpdatePrice is the only writer of last_price and last_checked_at.
	// A nil price records a failed check: only last_checked_at moves.
	UpdatePrice(ctx context.Context, id string, price *domain.Price, checkedAt time.Time) error

	// History
	AppendHistory(ctx context.Context, ev *domain.ChangeEvent) error
	ListHistory(ctx context.Context, subscriptionID string, limit int) ([]domain.ChangeEvent, error)

	// Scheduler
	InsertJobRun(ctx context.Context, jobName string) (id string, err error)
	CompleteJobRun(ctx context.Context, id string, status string, errText string, rowsAffected int) error
	ListJobRuns(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error)
	ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error)
	RecoverStaleJobRuns(ctx context.Context, olderThan time.Duration) (int, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
