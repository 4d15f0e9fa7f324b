package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/templstore/storefront/internal/cache"
	"github.com/templstore/storefront/internal/resilience"
	"github.com/templstore/storefront/internal/upstream"
)

func newHandler(t *testing.T, up http.Handler) (*Handler, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		up.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &Handler{
		Up:    upstream.New(srv.URL, resilience.HTTPClient{Client: srv.Client()}, zerolog.Nop()),
		Cache: cache.Cache{R: client, TTL: time.Minute},
		Log:   zerolog.Nop(),
	}, &calls
}

func TestCategoriesCached(t *testing.T) {
	h, calls := newHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/categories", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"c1","name":"Admin Panels","slug":"admin-panels"}]`))
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.Categories(rec, httptest.NewRequest(http.MethodGet, "/catalog/categories", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "Admin Panels")
	}
	require.EqualValues(t, 1, calls.Load(), "repeat reads must come from cache")
}

func TestListPassesFiltersAndPaginates(t *testing.T) {
	h, _ := newHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "portfolio", q.Get("search"))
		require.Equal(t, "12", q.Get("limit"))
		require.Equal(t, "24", q.Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"t1","title":"Folio","price":5900}],"total":40}`))
	}))

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/catalog/templates?search=portfolio&limit=12&offset=24", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Pagination struct {
			Page       int `json:"page"`
			PerPage    int `json:"per_page"`
			TotalItems int `json:"total_items"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, 3, payload.Pagination.Page)
	require.Equal(t, 12, payload.Pagination.PerPage)
	require.Equal(t, 40, payload.Pagination.TotalItems)
}

func TestListDistinctQueriesNotConflated(t *testing.T) {
	h, calls := newHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[],"total":0}`))
	}))

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/catalog/templates?category=saas", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/catalog/templates?category=blogs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.EqualValues(t, 2, calls.Load())
}

func TestDetailUsesRouteParam(t *testing.T) {
	h, _ := newHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/templates/t9", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"t9","title":"SaaS Kit","price":25000}`))
	}))

	r := chi.NewRouter()
	r.Get("/catalog/templates/{id}", h.Detail)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/templates/t9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "SaaS Kit")
}

func TestUpstreamDownSurfacesUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &Handler{
		Up:    upstream.New("http://127.0.0.1:0", resilience.HTTPClient{Client: http.DefaultClient}, zerolog.Nop()),
		Cache: cache.Cache{R: client, TTL: time.Minute},
		Log:   zerolog.Nop(),
	}
	rec := httptest.NewRecorder()
	h.Trending(rec, httptest.NewRequest(http.MethodGet, "/catalog/trending", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "UPSTREAM_UNAVAILABLE")
}
