package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/templstore/storefront/internal/common"
	"github.com/templstore/storefront/internal/session"
)

var errNoSession = errors.New("auth: session missing")

// Middleware resolves the caller's session and attaches their identity to
// the request context.
type Middleware struct {
	Sessions      session.Manager
	SessionCookie string
}

// Authenticate attaches identity when a live session is present; anonymous
// requests pass through untouched.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.resolve(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests without a live session.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.resolve(r)
		if err != nil {
			if errors.Is(err, errNoSession) || errors.Is(err, session.ErrNotFound) {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or expired session", nil)
				return
			}
			common.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a subtree to callers holding one of the given roles.
// It must be mounted inside RequireAuth.
func (m Middleware) RequireRole(roles ...int) func(http.Handler) http.Handler {
	allowed := make(map[int]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := common.IdentityFrom(r.Context())
			if !ok {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) resolve(r *http.Request) (context.Context, error) {
	if m.Sessions == nil {
		return r.Context(), errors.New("auth: session manager not configured")
	}
	sid := m.extractSID(r)
	if sid == "" {
		return r.Context(), errNoSession
	}
	rec, err := m.Sessions.Current(r.Context(), sid)
	if err != nil {
		return r.Context(), err
	}
	return common.WithIdentity(r.Context(), common.Identity{
		SessionID: rec.ID,
		Username:  rec.Username,
		Role:      rec.Role,
	}), nil
}

func (m Middleware) extractSID(r *http.Request) string {
	if sid := strings.TrimSpace(r.Header.Get("X-Session-ID")); sid != "" {
		return sid
	}
	if m.SessionCookie != "" {
		if cookie, err := r.Cookie(m.SessionCookie); err == nil {
			return strings.TrimSpace(cookie.Value)
		}
	}
	return ""
}
