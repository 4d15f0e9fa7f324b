package cart

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/templstore/storefront/internal/lock"
)

func newRouter(t *testing.T) *chi.Mux {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &Handler{
		Svc: &Service{
			R:      client,
			Locker: lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond},
			TTL:    time.Hour,
		},
		TaxBps:   1800,
		Currency: "INR",
	}
	r := chi.NewRouter()
	r.Post("/carts", h.Create)
	r.Route("/carts/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Get("/summary", h.Summary)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{templateId}", h.UpdateItem)
		r.Delete("/items/{templateId}", h.RemoveItem)
		r.Post("/coupon", h.ApplyCoupon)
		r.Delete("/coupon", h.RemoveCoupon)
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func createCart(t *testing.T, r http.Handler) string {
	t.Helper()
	rec, payload := doJSON(t, r, http.MethodPost, "/carts", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	data := payload["data"].(map[string]any)
	return data["id"].(string)
}

func TestCartLifecycleOverHTTP(t *testing.T) {
	r := newRouter(t)
	id := createCart(t, r)

	rec, payload := doJSON(t, r, http.MethodPost, "/carts/"+id+"/items",
		`{"templateId":"tpl-1","title":"Landing","unitPrice":11800,"qty":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data := payload["data"].(map[string]any)
	pricing := data["pricing"].(map[string]any)
	require.EqualValues(t, 11800, pricing["total"])
	require.EqualValues(t, 10000, pricing["base"])
	require.EqualValues(t, 1800, pricing["tax"])

	rec, payload = doJSON(t, r, http.MethodPost, "/carts/"+id+"/coupon", `{"code":"welcome10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	pricing = payload["data"].(map[string]any)["pricing"].(map[string]any)
	require.EqualValues(t, 1000, pricing["discount"])
	require.EqualValues(t, 10620, pricing["total"])
	require.EqualValues(t, 1180, pricing["savings"])

	rec, _ = doJSON(t, r, http.MethodPost, "/carts/"+id+"/coupon", `{"code":"summer20"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, payload = doJSON(t, r, http.MethodDelete, "/carts/"+id+"/coupon", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, payload["data"].(map[string]any)["coupon"])
}

func TestInvalidCouponOverHTTP(t *testing.T) {
	r := newRouter(t)
	id := createCart(t, r)

	rec, payload := doJSON(t, r, http.MethodPost, "/carts/"+id+"/coupon", `{"code":"save99"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := payload["error"].(map[string]any)
	require.Equal(t, "INVALID_COUPON", errBody["code"])
}

func TestCartNotFoundOverHTTP(t *testing.T) {
	r := newRouter(t)
	rec, payload := doJSON(t, r, http.MethodGet, "/carts/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", payload["error"].(map[string]any)["code"])
}

func TestUpdateQtyOverHTTP(t *testing.T) {
	r := newRouter(t)
	id := createCart(t, r)
	rec, _ := doJSON(t, r, http.MethodPost, "/carts/"+id+"/items",
		`{"templateId":"tpl-9","title":"Portfolio","unitPrice":5900,"qty":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, payload := doJSON(t, r, http.MethodPatch, "/carts/"+id+"/items/tpl-9", `{"qty":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := payload["data"].(map[string]any)["lines"].([]any)
	require.EqualValues(t, 3, lines[0].(map[string]any)["qty"])

	rec, _ = doJSON(t, r, http.MethodPatch, "/carts/"+id+"/items/tpl-9", `{"qty":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
