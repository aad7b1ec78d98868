package store

import (
	"fmt"
	"strings"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	orderByCreated     = "created_at"
	orderByLastChecked = "last_checked_at"
	orderByURL         = "url"
)

// validOrderBy maps allowed OrderBy values to their SQL column expressions.
var validOrderBy = map[string]string{
	orderByCreated:     "created_at ASC, id ASC",
	orderByLastChecked: "last_checked_at DESC NULLS LAST",
	orderByURL:         "url ASC",
}

const defaultOrderBy = "created_at ASC, id ASC"

const baseSubscriptionsSelect = `SELECT ` + subscriptionColumns + `
FROM subscriptions`

const countSubscriptionsSelect = "SELECT COUNT(*) FROM subscriptions"

// ToSQL builds the WHERE clause, ORDER BY, LIMIT, and OFFSET for a
// subscription query. It returns two SQL strings (one for the data query,
// one for the count query) and the positional parameters.
func (q *SubscriptionQuery) ToSQL() (dataSQL, countSQL string, args []any) {
	var conditions []string
	paramIdx := 1

	if q.Owner != nil {
		conditions = append(conditions, fmt.Sprintf("owner = $%d", paramIdx))
		args = append(args, *q.Owner)
		paramIdx++
	}

	if q.Site != nil {
		conditions = append(conditions, fmt.Sprintf("site = $%d", paramIdx))
		args = append(args, *q.Site)
		paramIdx++
	}

	if q.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", paramIdx))
		args = append(args, *q.Status)
	}

	var whereClause string
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderClause := defaultOrderBy
	if q.OrderBy != "" {
		if col, ok := validOrderBy[q.OrderBy]; ok {
			orderClause = col
		}
	}

	limit := q.limit()
	offset := max(q.Offset, 0)

	dataSQL = fmt.Sprintf(
		"%s%s ORDER BY %s LIMIT %d OFFSET %d",
		baseSubscriptionsSelect, whereClause, orderClause, limit, offset,
	)

	countSQL = countSubscriptionsSelect + whereClause

	return dataSQL, countSQL, args
}

func (q *SubscriptionQuery) limit() int {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	return min(limit, maxLimit)
}
