package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/templstore/storefront/internal/common"
	"github.com/templstore/storefront/internal/coupon"
)

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc      *Service
	TaxBps   int
	Currency string
}

// Create allocates a new empty cart.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	c, err := h.Svc.Create(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": h.render(c)})
}

// Get returns cart contents and the computed pricing summary.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(c)})
}

// AddItem adds a template line or increments its quantity.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TemplateID string `json:"templateId"`
		Title      string `json:"title"`
		UnitPrice  int64  `json:"unitPrice"`
		Qty        int    `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Qty == 0 {
		payload.Qty = 1
	}
	c, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), Line{
		TemplateID: strings.TrimSpace(payload.TemplateID),
		Title:      payload.Title,
		UnitPrice:  payload.UnitPrice,
		Qty:        payload.Qty,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(c)})
}

// UpdateItem sets the quantity of an existing line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	c, err := h.Svc.SetQty(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "templateId"), payload.Qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(c)})
}

// RemoveItem deletes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "templateId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(c)})
}

// Clear empties the cart and drops the coupon.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Clear(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(c)})
}

// ApplyCoupon attaches a coupon code to the cart.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.Code = strings.TrimSpace(payload.Code)
	if payload.Code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	c, err := h.Svc.ApplyCoupon(r.Context(), chi.URLParam(r, "id"), payload.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(c)})
}

// RemoveCoupon clears any applied coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.RemoveCoupon(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.render(c)})
}

// Summary returns only the pricing breakdown.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.renderPricing(c)})
}

func (h *Handler) render(c Cart) map[string]any {
	lines := make([]map[string]any, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, map[string]any{
			"templateId": l.TemplateID,
			"title":      l.Title,
			"unitPrice":  l.UnitPrice,
			"qty":        l.Qty,
			"subtotal":   int64(l.Qty) * l.UnitPrice,
		})
	}
	var couponField *string
	if c.Coupon != "" {
		couponField = &c.Coupon
	}
	return map[string]any{
		"id":      c.ID,
		"lines":   lines,
		"coupon":  couponField,
		"pricing": h.renderPricing(c),
	}
}

func (h *Handler) renderPricing(c Cart) map[string]any {
	b := Summary(c, h.TaxBps)
	return map[string]any{
		"listedTotal": b.TotalIncTax,
		"base":        b.Base,
		"discount":    b.Discount,
		"tax":         b.Tax,
		"total":       b.Total,
		"savings":     b.Savings,
		"currency":    h.Currency,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.WriteError(w, appErr)
		return
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart or item not found", nil)
	case errors.Is(err, ErrCouponActive):
		common.JSONError(w, http.StatusConflict, "COUPON_ACTIVE", "remove the active coupon first", nil)
	case errors.Is(err, coupon.ErrInvalidCoupon):
		common.JSONError(w, http.StatusBadRequest, "INVALID_COUPON", "coupon code is not recognised", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to process cart", nil)
	}
}
