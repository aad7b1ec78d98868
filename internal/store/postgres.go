package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

const defaultPoolSize = 10

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
// A non-positive maxConns uses the default pool size.
func NewPostgresStore(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := RunMigrations(ctx, s.pool)
	return err
}

// Subscribe upserts a subscription on (owner, url).
func (s *PostgresStore) Subscribe(ctx context.Context, sub *domain.Subscription) error {
	if sub.Status == "" {
		sub.Status = domain.StatusActive
	}
	if sub.Site == "" {
		sub.Site = domain.SiteGeneric
	}

	args := pgx.NamedArgs{
		"owner":        sub.Owner,
		"url":          sub.URL,
		"site":         string(sub.Site),
		"target_price": sub.TargetPrice,
		"status":       string(sub.Status),
	}

	if err := s.pool.QueryRow(ctx, querySubscribe, args).Scan(
		&sub.ID, &sub.LastPrice, &sub.LastCheckedAt, &sub.LastUpdatedAt, &sub.CreatedAt,
	); err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

// Unsubscribe deletes the subscription for (owner, url) and its history.
func (s *PostgresStore) Unsubscribe(ctx context.Context, owner, url string) error {
	tag, err := s.pool.Exec(ctx, queryUnsubscribe, owner, url)
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSubscription retrieves a subscription by its UUID.
func (s *PostgresStore) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	sub := &domain.Subscription{}
	err := scanSubscription(s.pool.QueryRow(ctx, queryGetSubscription, id), sub)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting subscription: %w", err)
	}
	return sub, nil
}

// ListActive returns all active subscriptions in creation order.
func (s *PostgresStore) ListActive(ctx context.Context) ([]domain.Subscription, error) {
	return s.querySubscriptions(ctx, queryListActiveSubscriptions)
}

// ListByOwner returns every subscription of owner in creation order.
func (s *PostgresStore) ListByOwner(ctx context.Context, owner string) ([]domain.Subscription, error) {
	return s.querySubscriptions(ctx, queryListSubscriptionsByOwner, owner)
}

// ListSubscriptions queries subscriptions with optional filters, returning
// results and total count.
func (s *PostgresStore) ListSubscriptions(
	ctx context.Context,
	q *SubscriptionQuery,
) ([]domain.Subscription, int, error) {
	dataSQL, countSQL, args := q.ToSQL()

	var total int
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting subscriptions: %w", err)
	}

	subs, err := s.querySubscriptions(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// SetStatus pauses or resumes a subscription.
func (s *PostgresStore) SetStatus(ctx context.Context, id string, status domain.Status) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, querySetSubscriptionStatus, id, string(status))
	if err != nil {
		return fmt.Errorf("setting subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePrice records the outcome of a check. last_updated_at only moves
// when the stored price actually changes.
func (s *PostgresStore) UpdatePrice(
	ctx context.Context,
	id string,
	price *domain.Price,
	checkedAt time.Time,
) error {
	if !validID(id) {
		return ErrNotFound
	}

	var (
		tag pgconn.CommandTag
		err error
	)
	if price == nil {
		tag, err = s.pool.Exec(ctx, queryUpdateCheckedAt, id, checkedAt)
	} else {
		tag, err = s.pool.Exec(ctx, queryUpdatePrice, pgx.NamedArgs{
			"id":         id,
			"price":      int64(*price),
			"checked_at": checkedAt,
		})
	}
	if err != nil {
		return fmt.Errorf("updating price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory archives a change event and sets its ID.
func (s *PostgresStore) AppendHistory(ctx context.Context, ev *domain.ChangeEvent) error {
	args := pgx.NamedArgs{
		"subscription_id": ev.SubscriptionID,
		"previous_price":  ev.Previous,
		"new_price":       ev.New,
		"classification":  string(ev.Classification),
		"baseline":        ev.Baseline,
		"failure_reason":  nullString(ev.FailureReason),
		"generated_at":    ev.GeneratedAt,
	}

	if err := s.pool.QueryRow(ctx, queryAppendHistory, args).Scan(&ev.ID); err != nil {
		return fmt.Errorf("appending price history: %w", err)
	}
	return nil
}

// ListHistory returns the newest history events for a subscription.
func (s *PostgresStore) ListHistory(
	ctx context.Context,
	subscriptionID string,
	limit int,
) ([]domain.ChangeEvent, error) {
	if !validID(subscriptionID) {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.pool.Query(ctx, queryListHistory, subscriptionID, min(limit, maxLimit))
	if err != nil {
		return nil, fmt.Errorf("querying price history: %w", err)
	}
	defer rows.Close()

	var events []domain.ChangeEvent
	for rows.Next() {
		var ev domain.ChangeEvent
		if err := rows.Scan(
			&ev.ID, &ev.SubscriptionID, &ev.Previous, &ev.New,
			&ev.Classification, &ev.Baseline, &ev.FailureReason, &ev.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning price history: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// InsertJobRun records the start of a scheduled job and returns its UUID.
func (s *PostgresStore) InsertJobRun(ctx context.Context, jobName string) (string, error) {
	var id string
	if err := s.pool.QueryRow(ctx, queryInsertJobRun, jobName).Scan(&id); err != nil {
		return "", fmt.Errorf("inserting job run: %w", err)
	}
	return id, nil
}

// CompleteJobRun marks a job run as finished with the given status and metadata.
func (s *PostgresStore) CompleteJobRun(
	ctx context.Context,
	id string,
	status string,
	errText string,
	rowsAffected int,
) error {
	_, err := s.pool.Exec(ctx, queryCompleteJobRun, id, status, errText, rowsAffected)
	if err != nil {
		return fmt.Errorf("completing job run: %w", err)
	}
	return nil
}

// ListJobRuns returns the most recent runs for a specific job, newest first.
func (s *PostgresStore) ListJobRuns(
	ctx context.Context,
	jobName string,
	limit int,
) ([]domain.JobRun, error) {
	rows, err := s.pool.Query(ctx, queryListJobRuns, jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("querying job runs: %w", err)
	}
	defer rows.Close()

	return scanJobRuns(rows)
}

// ListLatestJobRuns returns the single most recent run for each distinct job name.
func (s *PostgresStore) ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error) {
	rows, err := s.pool.Query(ctx, queryListLatestJobRuns)
	if err != nil {
		return nil, fmt.Errorf("querying latest job runs: %w", err)
	}
	defer rows.Close()

	return scanJobRuns(rows)
}

// RecoverStaleJobRuns marks any 'running' job rows older than olderThan as 'crashed',
// then deletes all rows older than 30 days. Returns the number of rows marked as crashed.
func (s *PostgresStore) RecoverStaleJobRuns(
	ctx context.Context,
	olderThan time.Duration,
) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	tag, err := s.pool.Exec(ctx, queryMarkStaleJobRunsCrashed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("marking stale job runs crashed: %w", err)
	}
	affected := int(tag.RowsAffected())

	if _, err := s.pool.Exec(ctx, queryDeleteOldJobRuns); err != nil {
		return affected, fmt.Errorf("deleting old job runs: %w", err)
	}

	return affected, nil
}

// scanJobRuns scans rows from a job_runs query into a slice.
func scanJobRuns(rows pgx.Rows) ([]domain.JobRun, error) {
	var runs []domain.JobRun
	for rows.Next() {
		var r domain.JobRun
		if err := rows.Scan(
			&r.ID, &r.JobName, &r.StartedAt, &r.CompletedAt,
			&r.Status, &r.ErrorText, &r.RowsAffected,
		); err != nil {
			return nil, fmt.Errorf("scanning job run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// querySubscriptions is a helper for subscription list queries.
func (s *PostgresStore) querySubscriptions(
	ctx context.Context,
	query string,
	args ...any,
) ([]domain.Subscription, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		if err := scanSubscription(rows, &sub); err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// scannable abstracts pgx.Row and pgx.Rows for reuse.
type scannable interface {
	Scan(dest ...any) error
}

// scanSubscription scans the subscriptionColumns of one row.
func scanSubscription(row scannable, sub *domain.Subscription) error {
	return row.Scan(
		&sub.ID, &sub.Owner, &sub.URL, &sub.Site, &sub.TargetPrice, &sub.LastPrice,
		&sub.LastCheckedAt, &sub.LastUpdatedAt, &sub.Status, &sub.CreatedAt,
	)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// validID reports whether id can match a UUID primary key. Malformed ids
// are treated as missing rows instead of surfacing a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
