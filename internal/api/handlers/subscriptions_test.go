package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/price-monitor/internal/api/handlers"
	"github.com/donaldgifford/price-monitor/internal/manager"
	"github.com/donaldgifford/price-monitor/internal/store"
	"github.com/donaldgifford/price-monitor/internal/store/mocks"
	"github.com/donaldgifford/price-monitor/pkg/extract"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

func newSubscriptionsAPI(t *testing.T) (humatest.TestAPI, *store.MemoryStore) {
	t.Helper()

	s := store.NewMemoryStore()
	mgr := manager.New(s, extract.DefaultRegistry(), nil)

	_, api := humatest.New(t)
	handlers.RegisterSubscriptionRoutes(api, handlers.NewSubscriptionsHandler(mgr, s))
	return api, s
}

func subscribeBody(owner, url string) map[string]any {
	return map[string]any{"owner": owner, "url": url}
}

func TestSubscribe_Created(t *testing.T) {
	t.Parallel()

	api, s := newSubscriptionsAPI(t)

	resp := api.Post("/api/v1/subscriptions", map[string]any{
		"owner":        "42",
		"url":          "https://www.ozon.ru/product/123",
		"target_price": "499.90",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &sub))
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, domain.SiteOzon, sub.Site)
	assert.Equal(t, domain.StatusActive, sub.Status)
	require.NotNil(t, sub.TargetPrice)
	assert.Equal(t, domain.Price(49990), *sub.TargetPrice)

	subs, err := s.ListByOwner(context.Background(), "42")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSubscribe_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
		wantBody string
	}{
		{
			name:     "relative url",
			body:     subscribeBody("42", "/product/1"),
			wantCode: http.StatusUnprocessableEntity,
			wantBody: "url must be an absolute http(s) url",
		},
		{
			name:     "blank owner",
			body:     subscribeBody("   ", "https://shop.example/1"),
			wantCode: http.StatusUnprocessableEntity,
			wantBody: "owner is required",
		},
		{
			name: "bad target",
			body: map[string]any{
				"owner": "42", "url": "https://shop.example/1", "target_price": "-5",
			},
			wantCode: http.StatusUnprocessableEntity,
			wantBody: "must be positive",
		},
		{
			name: "unknown site",
			body: map[string]any{
				"owner": "42", "url": "https://shop.example/1", "site": "amazon",
			},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "missing url",
			body:     map[string]any{"owner": "42"},
			wantCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api, _ := newSubscriptionsAPI(t)
			resp := api.Post("/api/v1/subscriptions", tt.body)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantBody != "" {
				assert.Contains(t, resp.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestListOwner_PositionalOrder(t *testing.T) {
	t.Parallel()

	api, _ := newSubscriptionsAPI(t)
	for _, u := range []string{"https://shop.example/a", "https://shop.example/b"} {
		require.Equal(t, http.StatusCreated, api.Post("/api/v1/subscriptions", subscribeBody("7", u)).Code)
	}
	require.Equal(t, http.StatusCreated,
		api.Post("/api/v1/subscriptions", subscribeBody("8", "https://shop.example/c")).Code)

	resp := api.Get("/api/v1/owners/7/subscriptions")
	require.Equal(t, http.StatusOK, resp.Code)

	var subs []domain.Subscription
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &subs))
	require.Len(t, subs, 2)
	assert.Equal(t, "https://shop.example/a", subs[0].URL)
	assert.Equal(t, "https://shop.example/b", subs[1].URL)
}

func TestListOwner_Empty(t *testing.T) {
	t.Parallel()

	api, _ := newSubscriptionsAPI(t)

	resp := api.Get("/api/v1/owners/nobody/subscriptions")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ref      string
		wantCode int
		wantURL  string
	}{
		{name: "by position", ref: "2", wantCode: http.StatusOK, wantURL: "https://shop.example/b"},
		{name: "by url", ref: "https://shop.example/a", wantCode: http.StatusOK, wantURL: "https://shop.example/a"},
		{name: "position out of range", ref: "3", wantCode: http.StatusNotFound},
		{name: "zero position", ref: "0", wantCode: http.StatusNotFound},
		{name: "unknown url", ref: "https://shop.example/zzz", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api, s := newSubscriptionsAPI(t)
			for _, u := range []string{"https://shop.example/a", "https://shop.example/b"} {
				require.Equal(t, http.StatusCreated, api.Post("/api/v1/subscriptions", subscribeBody("7", u)).Code)
			}

			resp := api.Delete("/api/v1/owners/7/subscriptions?ref=" + tt.ref)
			require.Equal(t, tt.wantCode, resp.Code, resp.Body.String())

			remaining, err := s.ListByOwner(context.Background(), "7")
			require.NoError(t, err)

			if tt.wantCode != http.StatusOK {
				assert.Len(t, remaining, 2)
				return
			}

			var removed domain.Subscription
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &removed))
			assert.Equal(t, tt.wantURL, removed.URL)
			require.Len(t, remaining, 1)
			assert.NotEqual(t, tt.wantURL, remaining[0].URL)
		})
	}
}

func TestGetSubscription(t *testing.T) {
	t.Parallel()

	api, _ := newSubscriptionsAPI(t)

	created := api.Post("/api/v1/subscriptions", subscribeBody("7", "https://www.wildberries.ru/catalog/1/detail.aspx"))
	require.Equal(t, http.StatusCreated, created.Code)
	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &sub))

	resp := api.Get("/api/v1/subscriptions/" + sub.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"site":"wildberries"`)

	missing := api.Get("/api/v1/subscriptions/does-not-exist")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestSetStatus(t *testing.T) {
	t.Parallel()

	api, s := newSubscriptionsAPI(t)

	created := api.Post("/api/v1/subscriptions", subscribeBody("7", "https://shop.example/a"))
	require.Equal(t, http.StatusCreated, created.Code)
	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &sub))

	resp := api.Put("/api/v1/subscriptions/"+sub.ID+"/status", map[string]any{"status": "paused"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"status":"paused"`)

	active, err := s.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	bad := api.Put("/api/v1/subscriptions/"+sub.ID+"/status", map[string]any{"status": "deleted"})
	assert.Equal(t, http.StatusUnprocessableEntity, bad.Code)

	missing := api.Put("/api/v1/subscriptions/nope/status", map[string]any{"status": "active"})
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestHistory(t *testing.T) {
	t.Parallel()

	api, s := newSubscriptionsAPI(t)
	ctx := context.Background()

	created := api.Post("/api/v1/subscriptions", subscribeBody("7", "https://shop.example/a"))
	require.Equal(t, http.StatusCreated, created.Code)
	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &sub))

	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendHistory(ctx, &domain.ChangeEvent{
		SubscriptionID: sub.ID,
		New:            domain.PriceOf(1000),
		Classification: domain.ClassUnchanged,
		Baseline:       true,
		GeneratedAt:    at,
	}))
	require.NoError(t, s.AppendHistory(ctx, &domain.ChangeEvent{
		SubscriptionID: sub.ID,
		Previous:       domain.PriceOf(1000),
		New:            domain.PriceOf(900),
		Classification: domain.ClassDecreased,
		GeneratedAt:    at.Add(time.Hour),
	}))

	resp := api.Get("/api/v1/subscriptions/" + sub.ID + "/history?limit=1")
	require.Equal(t, http.StatusOK, resp.Code)

	var events []domain.ChangeEvent
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, domain.ClassDecreased, events[0].Classification)

	missing := api.Get("/api/v1/subscriptions/nope/history")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestListSubscriptions_Filters(t *testing.T) {
	t.Parallel()

	api, _ := newSubscriptionsAPI(t)
	require.Equal(t, http.StatusCreated,
		api.Post("/api/v1/subscriptions", subscribeBody("1", "https://www.ozon.ru/product/1")).Code)
	require.Equal(t, http.StatusCreated,
		api.Post("/api/v1/subscriptions", subscribeBody("2", "https://shop.example/2")).Code)

	resp := api.Get("/api/v1/subscriptions?site=ozon")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"total":1`)
	assert.Contains(t, resp.Body.String(), "ozon.ru/product/1")
}

func TestListSubscriptions_StoreError(t *testing.T) {
	t.Parallel()

	ms := mocks.NewMockStore(t)
	ms.EXPECT().
		ListSubscriptions(mock.Anything, mock.Anything).
		Return(nil, 0, errors.New("db error")).
		Once()

	_, api := humatest.New(t)
	handlers.RegisterSubscriptionRoutes(api,
		handlers.NewSubscriptionsHandler(manager.New(ms, extract.DefaultRegistry(), nil), ms))

	resp := api.Get("/api/v1/subscriptions")
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), "subscription query failed")
}

func TestSubscribe_StoreError(t *testing.T) {
	t.Parallel()

	ms := mocks.NewMockStore(t)
	ms.EXPECT().Subscribe(mock.Anything, mock.Anything).Return(errors.New("db error")).Once()

	_, api := humatest.New(t)
	handlers.RegisterSubscriptionRoutes(api,
		handlers.NewSubscriptionsHandler(manager.New(ms, extract.DefaultRegistry(), nil), ms))

	resp := api.Post("/api/v1/subscriptions", subscribeBody("7", "https://shop.example/a"))
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), "subscribe failed")
}
