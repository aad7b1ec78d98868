package manager_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/price-monitor/internal/manager"
	"github.com/donaldgifford/price-monitor/internal/store"
	storeMocks "github.com/donaldgifford/price-monitor/internal/store/mocks"
	"github.com/donaldgifford/price-monitor/pkg/extract"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

type checkerFunc func(ctx context.Context) (domain.CycleSummary, error)

func (f checkerFunc) CheckNow(ctx context.Context) (domain.CycleSummary, error) { return f(ctx) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newManager(s store.Store) *manager.Manager {
	return manager.New(s, extract.DefaultRegistry(), checkerFunc(func(context.Context) (domain.CycleSummary, error) {
		return domain.CycleSummary{Checked: 3, Changed: 1, Failed: 1}, nil
	}), manager.WithLogger(quietLogger()))
}

func TestSubscribe_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     manager.SubscribeRequest
		wantErr []error
	}{
		{
			name:    "missing owner",
			req:     manager.SubscribeRequest{URL: "https://shop.example/p/1"},
			wantErr: []error{manager.ErrInvalidOwner},
		},
		{
			name:    "relative url",
			req:     manager.SubscribeRequest{Owner: "A", URL: "/p/1"},
			wantErr: []error{manager.ErrInvalidURL},
		},
		{
			name:    "unsupported scheme",
			req:     manager.SubscribeRequest{Owner: "A", URL: "ftp://shop.example/p/1"},
			wantErr: []error{manager.ErrInvalidURL},
		},
		{
			name:    "unknown site",
			req:     manager.SubscribeRequest{Owner: "A", URL: "https://shop.example/p/1", Site: "amazon"},
			wantErr: []error{manager.ErrInvalidSite},
		},
		{
			name:    "zero target",
			req:     manager.SubscribeRequest{Owner: "A", URL: "https://shop.example/p/1", TargetPrice: domain.PriceOf(0)},
			wantErr: []error{manager.ErrInvalidTarget},
		},
		{
			name:    "every problem reported",
			req:     manager.SubscribeRequest{URL: "nope", TargetPrice: domain.PriceOf(-1)},
			wantErr: []error{manager.ErrInvalidOwner, manager.ErrInvalidURL, manager.ErrInvalidTarget},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// No store expectations: validation fails before any write.
			m := newManager(storeMocks.NewMockStore(t))

			_, err := m.Subscribe(context.Background(), tt.req)
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestSubscribe_DetectsSite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		site domain.Site
		want domain.Site
	}{
		{"https://www.wildberries.ru/catalog/123/detail.aspx", "", domain.SiteWildberries},
		{"https://www.ozon.ru/product/abc-123/", "", domain.SiteOzon},
		{"https://shop.example/p/1", "", domain.SiteGeneric},
		{"https://shop.example/p/2", domain.SiteOzon, domain.SiteOzon},
	}

	m := newManager(store.NewMemoryStore())
	for _, tt := range tests {
		sub, err := m.Subscribe(context.Background(), manager.SubscribeRequest{
			Owner: "A", URL: tt.url, Site: tt.site,
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, sub.Site, tt.url)
		assert.Equal(t, domain.StatusActive, sub.Status)
		assert.NotEmpty(t, sub.ID)
	}
}

func TestSubscribe_TwiceKeepsOneRowWithSecondTarget(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	m := newManager(s)

	first, err := m.Subscribe(context.Background(), manager.SubscribeRequest{
		Owner: "A", URL: "https://shop.example/x", TargetPrice: domain.PriceOf(50000),
	})
	require.NoError(t, err)

	second, err := m.Subscribe(context.Background(), manager.SubscribeRequest{
		Owner: "A", URL: " https://shop.example/x ", TargetPrice: domain.PriceOf(40000),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	subs, err := m.List(context.Background(), "A")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, domain.Price(40000), *subs[0].TargetPrice)
}

func TestSubscribe_ConcurrentCallsKeepOneRow(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	m := newManager(s)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Subscribe(context.Background(), manager.SubscribeRequest{
				Owner: "A", URL: "https://shop.example/x", TargetPrice: domain.PriceOf(int64(1000 + i)),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	subs, err := m.List(context.Background(), "A")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSubscribe_StoreError(t *testing.T) {
	t.Parallel()

	ms := storeMocks.NewMockStore(t)
	ms.EXPECT().Subscribe(mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	_, err := newManager(ms).Subscribe(context.Background(), manager.SubscribeRequest{
		Owner: "A", URL: "https://shop.example/x",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribing")
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ref      string
		wantURL  string
		wantErr  error
		wantLeft int
	}{
		{name: "by position", ref: "2", wantURL: "https://shop.example/2", wantLeft: 2},
		{name: "by url", ref: "https://shop.example/3", wantURL: "https://shop.example/3", wantLeft: 2},
		{name: "position zero", ref: "0", wantErr: manager.ErrBadReference, wantLeft: 3},
		{name: "position past end", ref: "4", wantErr: manager.ErrBadReference, wantLeft: 3},
		{name: "unknown url", ref: "https://shop.example/9", wantErr: store.ErrNotFound, wantLeft: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newManager(store.NewMemoryStore())
			for _, u := range []string{"https://shop.example/1", "https://shop.example/2", "https://shop.example/3"} {
				_, err := m.Subscribe(context.Background(), manager.SubscribeRequest{Owner: "A", URL: u})
				require.NoError(t, err)
			}
			_, err := m.Subscribe(context.Background(), manager.SubscribeRequest{Owner: "B", URL: "https://shop.example/2"})
			require.NoError(t, err)

			removed, err := m.Unsubscribe(context.Background(), "A", tt.ref)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantURL, removed.URL)
			}

			left, err := m.List(context.Background(), "A")
			require.NoError(t, err)
			assert.Len(t, left, tt.wantLeft)

			other, err := m.List(context.Background(), "B")
			require.NoError(t, err)
			assert.Len(t, other, 1, "other owners are untouched")
		})
	}
}

func TestUnsubscribe_MissingOwner(t *testing.T) {
	t.Parallel()

	_, err := newManager(storeMocks.NewMockStore(t)).Unsubscribe(context.Background(), " ", "1")
	require.ErrorIs(t, err, manager.ErrInvalidOwner)
}

func TestSetStatusAndHistory(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	m := newManager(s)

	sub, err := m.Subscribe(context.Background(), manager.SubscribeRequest{Owner: "A", URL: "https://shop.example/1"})
	require.NoError(t, err)

	require.ErrorIs(t, m.SetStatus(context.Background(), sub.ID, "deleted"), manager.ErrInvalidStatus)
	require.NoError(t, m.SetStatus(context.Background(), sub.ID, domain.StatusPaused))

	got, err := m.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, got.Status)

	require.NoError(t, s.AppendHistory(context.Background(), &domain.ChangeEvent{
		SubscriptionID: sub.ID, Classification: domain.ClassDecreased,
	}))
	events, err := m.History(context.Background(), sub.ID, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = m.History(context.Background(), "missing", 10)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCheckNow(t *testing.T) {
	t.Parallel()

	summary, err := newManager(store.NewMemoryStore()).CheckNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Checked)
	assert.Equal(t, 1, summary.Changed)
	assert.Equal(t, 1, summary.Failed)
}
