package store

// SQL query constants organized by entity.
// All SQL lives here. PostgresStore methods reference these constants.

const subscriptionColumns = `id, owner, url, site, target_price, last_price,
	last_checked_at, last_updated_at, status, created_at`

// Subscription queries.
const (
	querySubscribe = `
		INSERT INTO subscriptions (owner, url, site, target_price, status)
		VALUES (@owner, @url, @site, @target_price, @status)
		ON CONFLICT (owner, url) DO UPDATE SET
			site         = EXCLUDED.site,
			target_price = EXCLUDED.target_price,
			status       = EXCLUDED.status
		RETURNING id, last_price, last_checked_at, last_updated_at, created_at`

	queryUnsubscribe = `
		DELETE FROM subscriptions WHERE owner = $1 AND url = $2`

	queryGetSubscription = `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE id = $1`

	queryListActiveSubscriptions = `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active'
		ORDER BY created_at ASC, id ASC`

	queryListSubscriptionsByOwner = `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE owner = $1
		ORDER BY created_at ASC, id ASC`

	querySetSubscriptionStatus = `
		UPDATE subscriptions SET status = $2 WHERE id = $1`

	// Assignments read the pre-update row, so the CASE compares against
	// the old last_price.
	queryUpdatePrice = `
		UPDATE subscriptions SET
			last_updated_at = CASE
				WHEN last_price IS DISTINCT FROM @price THEN @checked_at
				ELSE last_updated_at
			END,
			last_price      = @price,
			last_checked_at = @checked_at
		WHERE id = @id`

	queryUpdateCheckedAt = `
		UPDATE subscriptions SET last_checked_at = $2 WHERE id = $1`
)

// Price history queries.
const (
	queryAppendHistory = `
		INSERT INTO price_history (
			subscription_id, previous_price, new_price,
			classification, baseline, failure_reason, generated_at
		) VALUES (
			@subscription_id, @previous_price, @new_price,
			@classification, @baseline, @failure_reason, @generated_at
		)
		RETURNING id`

	queryListHistory = `
		SELECT id, subscription_id, previous_price, new_price,
			classification, baseline, COALESCE(failure_reason, ''), generated_at
		FROM price_history
		WHERE subscription_id = $1
		ORDER BY generated_at DESC, id DESC
		LIMIT $2`
)

// Job run queries.
const (
	queryInsertJobRun = `
		INSERT INTO job_runs (job_name)
		VALUES ($1)
		RETURNING id`

	queryCompleteJobRun = `
		UPDATE job_runs SET
			completed_at  = now(),
			status        = $2,
			error_text    = $3,
			rows_affected = $4
		WHERE id = $1`

	queryListJobRuns = `
		SELECT id, job_name, started_at, completed_at, status,
			COALESCE(error_text, ''), rows_affected
		FROM job_runs
		WHERE job_name = $1
		ORDER BY started_at DESC
		LIMIT $2`

	queryListLatestJobRuns = `
		SELECT DISTINCT ON (job_name)
			id, job_name, started_at, completed_at, status,
			COALESCE(error_text, ''), rows_affected
		FROM job_runs
		ORDER BY job_name, started_at DESC`

	queryMarkStaleJobRunsCrashed = `
		UPDATE job_runs SET
			status       = 'crashed',
			completed_at = now()
		WHERE status = 'running' AND started_at < $1`

	queryDeleteOldJobRuns = `
		DELETE FROM job_runs WHERE started_at < now() - interval '30 days'`
)
