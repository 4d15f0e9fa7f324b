package newsletter

import (
	"encoding/json"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/templstore/storefront/internal/common"
	"github.com/templstore/storefront/internal/upstream"
)

// Handler exposes the newsletter subscription flow. The marketplace guards
// subscription with an arithmetic captcha; this handler relays the challenge
// and the answer without inspecting either.
type Handler struct {
	Up       *upstream.Client
	Validate *validator.Validate
}

// Captcha fetches a fresh challenge for the subscribe form.
func (h *Handler) Captcha(w http.ResponseWriter, r *http.Request) {
	c, err := h.Up.NewsletterCaptcha(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

type subscribePayload struct {
	Email     string `json:"email" validate:"required,email"`
	CaptchaID string `json:"captchaId" validate:"required"`
	Answer    string `json:"answer" validate:"required"`
}

// Subscribe submits an email with its captcha answer.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var payload subscribePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "email, captchaId and answer are required", nil)
			return
		}
	}
	if err := h.Up.NewsletterSubscribe(r.Context(), payload.Email, payload.CaptchaID, payload.Answer); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"subscribed": true}})
}

// Unsubscribe removes an email from the list.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Email == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "email is required", nil)
		return
	}
	if err := h.Up.NewsletterUnsubscribe(r.Context(), payload.Email); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"unsubscribed": true}})
}
