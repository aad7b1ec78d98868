package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/donaldgifford/price-monitor/internal/api/handlers"
	"github.com/donaldgifford/price-monitor/internal/store/mocks"
)

func probe(t *testing.T, h *handlers.HealthHandler, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.Register(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rec
}

func TestHealthz_DoesNotTouchDependencies(t *testing.T) {
	t.Parallel()

	// No EXPECT: any store call fails the test.
	rec := probe(t, handlers.NewHealthHandler(mocks.NewMockStore(t)), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")

	tests := []struct {
		name       string
		storeErr   error
		redisErr   error
		withRedis  bool
		wantStatus int
		wantBody   string
	}{
		{
			name:       "store only, reachable",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready","checks":{"store":"ok"}}`,
		},
		{
			name:       "store only, unreachable",
			storeErr:   down,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"unavailable","checks":{"store":"unavailable"}}`,
		},
		{
			name:       "store and redis reachable",
			withRedis:  true,
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready","checks":{"store":"ok","redis":"ok"}}`,
		},
		{
			name:       "redis down fails readiness",
			withRedis:  true,
			redisErr:   down,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"unavailable","checks":{"store":"ok","redis":"unavailable"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockStore := mocks.NewMockStore(t)
			mockStore.EXPECT().Ping(mock.Anything).Return(tt.storeErr).Once()

			h := handlers.NewHealthHandler(mockStore)
			if tt.withRedis {
				h.Require("redis", handlers.PingFunc(func(context.Context) error { return tt.redisErr }))
			}

			rec := probe(t, h, "/readyz")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestReadyz_PingHasDeadline(t *testing.T) {
	t.Parallel()

	mockStore := mocks.NewMockStore(t)
	mockStore.EXPECT().Ping(mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})).Return(nil).Once()

	rec := probe(t, handlers.NewHealthHandler(mockStore), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}
