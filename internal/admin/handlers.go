package admin

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/templstore/storefront/internal/common"
	"github.com/templstore/storefront/internal/session"
	"github.com/templstore/storefront/internal/upstream"
)

// Handler proxies the admin reporting endpoints. Access is role-gated by
// middleware; the upstream token comes from the caller's session record.
type Handler struct {
	Up       *upstream.Client
	Sessions session.Manager
}

// Analytics returns the platform analytics overview.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func(token string) (json.RawMessage, error) {
		return h.Up.AdminAnalytics(r.Context(), token)
	})
}

// Sales returns the sales report, optionally scoped by ?period=.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	period := strings.TrimSpace(r.URL.Query().Get("period"))
	h.proxy(w, r, func(token string) (json.RawMessage, error) {
		return h.Up.AdminSales(r.Context(), token, period)
	})
}

// Users returns the user management listing.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 50)
	offset := common.AtoiDefault(r.URL.Query().Get("offset"), 0)
	h.proxy(w, r, func(token string) (json.RawMessage, error) {
		return h.Up.AdminUsers(r.Context(), token, limit, offset)
	})
}

// Wallet returns the platform wallet report.
func (h *Handler) Wallet(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func(token string) (json.RawMessage, error) {
		return h.Up.AdminWallet(r.Context(), token)
	})
}

func (h *Handler) proxy(w http.ResponseWriter, r *http.Request, fetch func(token string) (json.RawMessage, error)) {
	id, ok := common.IdentityFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	rec, err := h.Sessions.Current(r.Context(), id.SessionID)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "session expired", nil)
		return
	}
	raw, err := fetch(rec.Token)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": raw})
}
