package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store in process memory. Nothing survives a
// restart, so it is meant for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	subs    map[string]*memSubscription
	history map[string][]domain.ChangeEvent
	eventID int64
	jobs    []domain.JobRun
	now     func() time.Time
}

type memSubscription struct {
	sub domain.Subscription
	seq int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:    make(map[string]*memSubscription),
		history: make(map[string][]domain.ChangeEvent),
		now:     time.Now,
	}
}

// Ping always succeeds.
func (*MemoryStore) Ping(context.Context) error { return nil }

// Migrate is a no-op.
func (*MemoryStore) Migrate(context.Context) error { return nil }

// Subscribe upserts a subscription on (owner, url).
func (m *MemoryStore) Subscribe(_ context.Context, s *domain.Subscription) error {
	if s.Status == "" {
		s.Status = domain.StatusActive
	}
	if s.Site == "" {
		s.Site = domain.SiteGeneric
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.findLocked(s.Owner, s.URL); existing != nil {
		existing.sub.Site = s.Site
		existing.sub.TargetPrice = clonePrice(s.TargetPrice)
		existing.sub.Status = s.Status
		*s = cloneSubscription(existing.sub)
		return nil
	}

	m.seq++
	stored := cloneSubscription(*s)
	stored.ID = uuid.NewString()
	stored.LastPrice = nil
	stored.LastCheckedAt = nil
	stored.LastUpdatedAt = nil
	stored.CreatedAt = m.now().UTC()
	m.subs[stored.ID] = &memSubscription{sub: stored, seq: m.seq}

	*s = cloneSubscription(stored)
	return nil
}

// Unsubscribe deletes the subscription for (owner, url) and its history.
func (m *MemoryStore) Unsubscribe(_ context.Context, owner, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.findLocked(owner, url)
	if existing == nil {
		return ErrNotFound
	}
	delete(m.subs, existing.sub.ID)
	delete(m.history, existing.sub.ID)
	return nil
}

// GetSubscription retrieves a subscription by id.
func (m *MemoryStore) GetSubscription(_ context.Context, id string) (*domain.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ms, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	sub := cloneSubscription(ms.sub)
	return &sub, nil
}

// ListActive returns all active subscriptions in creation order.
func (m *MemoryStore) ListActive(_ context.Context) ([]domain.Subscription, error) {
	return m.filter(func(s *domain.Subscription) bool {
		return s.Status == domain.StatusActive
	}), nil
}

// ListByOwner returns every subscription of owner in creation order.
func (m *MemoryStore) ListByOwner(_ context.Context, owner string) ([]domain.Subscription, error) {
	return m.filter(func(s *domain.Subscription) bool {
		return s.Owner == owner
	}), nil
}

// ListSubscriptions applies q in memory. Ordering other than creation
// order supports the same keys as the SQL builder.
func (m *MemoryStore) ListSubscriptions(
	_ context.Context,
	q *SubscriptionQuery,
) ([]domain.Subscription, int, error) {
	subs := m.filter(func(s *domain.Subscription) bool {
		if q.Owner != nil && s.Owner != *q.Owner {
			return false
		}
		if q.Site != nil && string(s.Site) != *q.Site {
			return false
		}
		if q.Status != nil && string(s.Status) != *q.Status {
			return false
		}
		return true
	})

	switch q.OrderBy {
	case orderByURL:
		slices.SortStableFunc(subs, func(a, b domain.Subscription) int {
			return strings.Compare(a.URL, b.URL)
		})
	case orderByLastChecked:
		slices.SortStableFunc(subs, func(a, b domain.Subscription) int {
			switch {
			case a.LastCheckedAt == nil && b.LastCheckedAt == nil:
				return 0
			case a.LastCheckedAt == nil:
				return 1
			case b.LastCheckedAt == nil:
				return -1
			default:
				return b.LastCheckedAt.Compare(*a.LastCheckedAt)
			}
		})
	}

	total := len(subs)
	offset := min(max(q.Offset, 0), total)
	end := min(offset+q.limit(), total)
	return subs[offset:end], total, nil
}

// SetStatus pauses or resumes a subscription.
func (m *MemoryStore) SetStatus(_ context.Context, id string, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.subs[id]
	if !ok {
		return ErrNotFound
	}
	ms.sub.Status = status
	return nil
}

// UpdatePrice records the outcome of a check.
func (m *MemoryStore) UpdatePrice(
	_ context.Context,
	id string,
	price *domain.Price,
	checkedAt time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.subs[id]
	if !ok {
		return ErrNotFound
	}

	at := checkedAt
	ms.sub.LastCheckedAt = &at
	if price == nil {
		return nil
	}
	if ms.sub.LastPrice == nil || *ms.sub.LastPrice != *price {
		updated := checkedAt
		ms.sub.LastUpdatedAt = &updated
	}
	ms.sub.LastPrice = clonePrice(price)
	return nil
}

// AppendHistory archives a change event and sets its ID.
func (m *MemoryStore) AppendHistory(_ context.Context, ev *domain.ChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[ev.SubscriptionID]; !ok {
		return ErrNotFound
	}

	m.eventID++
	ev.ID = m.eventID

	stored := *ev
	stored.Previous = clonePrice(ev.Previous)
	stored.New = clonePrice(ev.New)
	m.history[ev.SubscriptionID] = append(m.history[ev.SubscriptionID], stored)
	return nil
}

// ListHistory returns the newest history events for a subscription.
func (m *MemoryStore) ListHistory(
	_ context.Context,
	subscriptionID string,
	limit int,
) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	events := m.history[subscriptionID]
	out := make([]domain.ChangeEvent, 0, min(len(events), limit))
	for i := len(events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, events[i])
	}
	return out, nil
}

// InsertJobRun records the start of a job.
func (m *MemoryStore) InsertJobRun(_ context.Context, jobName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := domain.JobRun{
		ID:        uuid.NewString(),
		JobName:   jobName,
		StartedAt: m.now().UTC(),
		Status:    "running",
	}
	m.jobs = append(m.jobs, run)
	return run.ID, nil
}

// CompleteJobRun marks a job run as finished.
func (m *MemoryStore) CompleteJobRun(
	_ context.Context,
	id string,
	status string,
	errText string,
	rowsAffected int,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.jobs {
		if m.jobs[i].ID != id {
			continue
		}
		now := m.now().UTC()
		rows := rowsAffected
		m.jobs[i].CompletedAt = &now
		m.jobs[i].Status = status
		m.jobs[i].ErrorText = errText
		m.jobs[i].RowsAffected = &rows
		return nil
	}
	return ErrNotFound
}

// ListJobRuns returns the most recent runs for jobName, newest first.
func (m *MemoryStore) ListJobRuns(_ context.Context, jobName string, limit int) ([]domain.JobRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var runs []domain.JobRun
	for i := len(m.jobs) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) >= limit {
			break
		}
		if m.jobs[i].JobName == jobName {
			runs = append(runs, m.jobs[i])
		}
	}
	return runs, nil
}

// ListLatestJobRuns returns the newest run of each job.
func (m *MemoryStore) ListLatestJobRuns(_ context.Context) ([]domain.JobRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]domain.JobRun)
	for _, r := range m.jobs {
		latest[r.JobName] = r
	}

	runs := make([]domain.JobRun, 0, len(latest))
	for _, r := range latest {
		runs = append(runs, r)
	}
	slices.SortFunc(runs, func(a, b domain.JobRun) int {
		return cmp.Compare(a.JobName, b.JobName)
	})
	return runs, nil
}

// RecoverStaleJobRuns marks running jobs older than olderThan as crashed.
func (m *MemoryStore) RecoverStaleJobRuns(_ context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	cutoff := now.Add(-olderThan)
	crashed := 0
	for i := range m.jobs {
		if m.jobs[i].Status == "running" && m.jobs[i].StartedAt.Before(cutoff) {
			m.jobs[i].Status = "crashed"
			m.jobs[i].CompletedAt = &now
			crashed++
		}
	}
	return crashed, nil
}

func (m *MemoryStore) findLocked(owner, url string) *memSubscription {
	for _, ms := range m.subs {
		if ms.sub.Owner == owner && ms.sub.URL == url {
			return ms
		}
	}
	return nil
}

func (m *MemoryStore) filter(keep func(*domain.Subscription) bool) []domain.Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*memSubscription, 0, len(m.subs))
	for _, ms := range m.subs {
		if keep(&ms.sub) {
			matched = append(matched, ms)
		}
	}
	slices.SortFunc(matched, func(a, b *memSubscription) int {
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]domain.Subscription, len(matched))
	for i, ms := range matched {
		out[i] = cloneSubscription(ms.sub)
	}
	return out
}

func cloneSubscription(s domain.Subscription) domain.Subscription {
	s.TargetPrice = clonePrice(s.TargetPrice)
	s.LastPrice = clonePrice(s.LastPrice)
	if s.LastCheckedAt != nil {
		t := *s.LastCheckedAt
		s.LastCheckedAt = &t
	}
	if s.LastUpdatedAt != nil {
		t := *s.LastUpdatedAt
		s.LastUpdatedAt = &t
	}
	return s
}

func clonePrice(p *domain.Price) *domain.Price {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
