package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/templstore/storefront/internal/cache"
	"github.com/templstore/storefront/internal/common"
	"github.com/templstore/storefront/internal/upstream"
)

// Handler serves catalog reads from the marketplace API, fronted by a Redis
// cache so browsing does not hit upstream on every request.
type Handler struct {
	Up    *upstream.Client
	Cache cache.Cache
	Log   zerolog.Logger
}

const defaultPageSize = 24

// Categories lists template categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	const key = "catalog:categories"
	var cats []upstream.Category
	if err := h.Cache.GetJSON(r.Context(), key, &cats); err == nil {
		common.JSON(w, http.StatusOK, map[string]any{"data": cats})
		return
	}
	cats, err := h.Up.Categories(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.store(r.Context(), key, cats)
	common.JSON(w, http.StatusOK, map[string]any{"data": cats})
}

// List serves the searchable, filterable template listing.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := parseQuery(r)
	key := listCacheKey(q)

	var list upstream.TemplateList
	if err := h.Cache.GetJSON(r.Context(), key, &list); err == nil {
		h.writeList(w, list, q)
		return
	}
	list, err := h.Up.Templates(r.Context(), q)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.store(r.Context(), key, list)
	h.writeList(w, list, q)
}

// Trending lists trending templates.
func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	const key = "catalog:trending"
	var items []upstream.Template
	if err := h.Cache.GetJSON(r.Context(), key, &items); err == nil {
		common.JSON(w, http.StatusOK, map[string]any{"data": items})
		return
	}
	items, err := h.Up.Trending(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.store(r.Context(), key, items)
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// Detail returns a single template.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "template id is required", nil)
		return
	}
	key := "catalog:template:" + id
	var tpl upstream.Template
	if err := h.Cache.GetJSON(r.Context(), key, &tpl); err == nil {
		common.JSON(w, http.StatusOK, map[string]any{"data": tpl})
		return
	}
	tpl, err := h.Up.Template(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.store(r.Context(), key, tpl)
	common.JSON(w, http.StatusOK, map[string]any{"data": tpl})
}

func (h *Handler) writeList(w http.ResponseWriter, list upstream.TemplateList, q upstream.TemplateQuery) {
	page := 1
	if q.Limit > 0 {
		page = q.Offset/q.Limit + 1
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": list.Items,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    q.Limit,
			TotalItems: list.Total,
		},
	})
}

func (h *Handler) store(ctx context.Context, key string, v any) {
	if err := h.Cache.SetJSON(ctx, key, v); err != nil && !errors.Is(err, cache.ErrMiss) {
		h.Log.Warn().Err(err).Str("key", key).Msg("catalog_cache_write_failed")
	}
}

func parseQuery(r *http.Request) upstream.TemplateQuery {
	qs := r.URL.Query()
	limit := common.AtoiDefault(qs.Get("limit"), defaultPageSize)
	if limit <= 0 || limit > 100 {
		limit = defaultPageSize
	}
	offset := common.AtoiDefault(qs.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	minRating, _ := strconv.ParseFloat(qs.Get("min_rating"), 64)
	return upstream.TemplateQuery{
		Search:    strings.TrimSpace(qs.Get("search")),
		Category:  strings.TrimSpace(qs.Get("category")),
		SortBy:    strings.TrimSpace(qs.Get("sort_by")),
		MinPrice:  int64(common.AtoiDefault(qs.Get("min_price"), 0)),
		MaxPrice:  int64(common.AtoiDefault(qs.Get("max_price"), 0)),
		MinRating: minRating,
		FreeOnly:  qs.Get("free_only") == "true",
		Limit:     limit,
		Offset:    offset,
	}
}

func listCacheKey(q upstream.TemplateQuery) string {
	return fmt.Sprintf("catalog:list:%s", q.Values().Encode())
}
