package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/templstore/storefront/internal/common"
	"github.com/templstore/storefront/internal/session"
	"github.com/templstore/storefront/internal/upstream"
)

// Handler proxies authentication flows to the marketplace API and manages
// the local session records minted from its tokens.
type Handler struct {
	Up       *upstream.Client
	Sessions *session.Store
	Validate *validator.Validate
	Log      zerolog.Logger
}

type registerPayload struct {
	Username        string `json:"username" validate:"required,min=3,max=64"`
	Email           string `json:"email" validate:"required,email"`
	FullName        string `json:"fullName" validate:"max=120"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	AcceptTerms     bool   `json:"acceptTerms" validate:"eq=true"`
}

// Register validates the signup form locally and forwards the account fields
// upstream. Confirmation and terms acceptance never leave this service.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "registration form is invalid", validationDetails(err))
		return
	}
	err := h.Up.Signup(r.Context(), upstream.SignupRequest{
		Username: strings.TrimSpace(payload.Username),
		Email:    strings.TrimSpace(payload.Email),
		Password: payload.Password,
		FullName: strings.TrimSpace(payload.FullName),
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{"message": "account created, check your email to verify"},
	})
}

// Login exchanges credentials upstream and mints a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.Username = strings.TrimSpace(payload.Username)
	if payload.Username == "" || payload.Password == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "username and password are required", nil)
		return
	}
	res, err := h.Up.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	rec, err := h.Sessions.Create(r.Context(), res.AccessToken)
	if err != nil {
		h.Log.Error().Err(err).Str("user", res.Username).Msg("session_create_failed")
		common.WriteError(w, err)
		return
	}
	if rec.Username == "" {
		rec.Username = res.Username
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"sessionId": rec.ID,
			"username":  rec.Username,
			"role":      rec.Role,
			"expiresAt": rec.ExpiresAt.UnixMilli(),
		},
	})
}

// Logout invalidates the current session. Repeated logouts succeed.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := common.IdentityFrom(r.Context())
	if ok {
		if err := h.Sessions.Invalidate(r.Context(), id.SessionID); err != nil {
			h.Log.Warn().Err(err).Msg("session_invalidate_failed")
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"loggedOut": true}})
}

// Me returns the current session's identity.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := common.IdentityFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	rec, err := h.Sessions.Current(r.Context(), id.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "session expired", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"username":  rec.Username,
			"role":      rec.Role,
			"kycDone":   rec.KYCDone,
			"expiresAt": rec.ExpiresAt.UnixMilli(),
		},
	})
}

// ResendVerification triggers a fresh verification email upstream.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	email, ok := h.emailPayload(w, r)
	if !ok {
		return
	}
	if err := h.Up.ResendVerification(r.Context(), email); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"sent": true}})
}

// VerifyEmail confirms the address using the token from the emailed link.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "token is required", nil)
		return
	}
	if err := h.Up.VerifyEmail(r.Context(), token); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"verified": true}})
}

// ForgotPassword starts the reset flow.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	email, ok := h.emailPayload(w, r)
	if !ok {
		return
	}
	if err := h.Up.ForgotPassword(r.Context(), email); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"sent": true}})
}

// CheckResetToken reports whether a reset token is still usable, so the form
// can be rejected before the user types a new password.
func (h *Handler) CheckResetToken(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "token is required", nil)
		return
	}
	if err := h.Up.VerifyResetToken(r.Context(), token); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"valid": true}})
}

type resetPayload struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ResetPassword completes the reset flow.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload resetPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "reset form is invalid", validationDetails(err))
		return
	}
	if err := h.Up.ResetPassword(r.Context(), payload.Token, payload.Password); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"reset": true}})
}

func (h *Handler) emailPayload(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return "", false
	}
	payload.Email = strings.TrimSpace(payload.Email)
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "a valid email is required", nil)
		return "", false
	}
	return payload.Email, true
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}
