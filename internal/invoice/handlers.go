package invoice

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/templstore/storefront/internal/common"
	"github.com/templstore/storefront/internal/obs"
	"github.com/templstore/storefront/internal/session"
	"github.com/templstore/storefront/internal/upstream"
)

// Handler serves invoice PDFs for the caller's purchases.
type Handler struct {
	Up       *upstream.Client
	Sessions session.Manager
	TaxBps   int
	Currency string
	Log      zerolog.Logger
	Now      func() time.Time
}

// Download streams the invoice PDF for a purchase as an attachment.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
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
	purchaseID := strings.TrimSpace(chi.URLParam(r, "purchaseId"))
	if purchaseID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "purchase id is required", nil)
		return
	}
	p, err := h.Up.PurchaseByID(r.Context(), rec.Token, purchaseID)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	inv := Invoice{
		PurchaseID:   p.ID,
		Date:         parseDate(p.PurchasedAt, h.now()),
		TemplateName: p.TemplateName,
		TemplateID:   p.TemplateID,
		PriceIncTax:  p.Price,
	}
	var buf bytes.Buffer
	if err := Render(&buf, inv, h.TaxBps, h.Currency); err != nil {
		h.Log.Error().Err(err).Str("purchase", purchaseID).Msg("invoice_render_failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to generate invoice", nil)
		return
	}
	if obs.InvoicesRenderedTotal != nil {
		obs.InvoicesRenderedTotal.Inc()
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+Filename(p.ID, h.Now)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func parseDate(raw string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return fallback
}
