package upstream

import (
	"net/http"
	"strings"

	"github.com/templstore/storefront/internal/common"
)

// Unavailable wraps a transport-level failure. The caller-facing message is
// deliberately vague; the cause travels in the wrapped error for logs.
func Unavailable(err error) *common.AppError {
	return &common.AppError{
		Code:       "UPSTREAM_UNAVAILABLE",
		Message:    "marketplace is unavailable, please try again later",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// domainMatchers maps substrings of upstream error messages to stable error
// codes. The marketplace API reports domain failures as free-text detail
// strings; matching is case-insensitive on the fragments it is known to emit.
var domainMatchers = []struct {
	fragment string
	code     string
	status   int
	message  string
}{
	{"invalid credentials", "INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password"},
	{"incorrect username or password", "INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password"},
	{"not verified", "EMAIL_UNVERIFIED", http.StatusForbidden, "email address is not verified"},
	{"verify your email", "EMAIL_UNVERIFIED", http.StatusForbidden, "email address is not verified"},
	{"deactivated", "ACCOUNT_DEACTIVATED", http.StatusForbidden, "account is deactivated"},
	{"already registered", "ALREADY_REGISTERED", http.StatusConflict, "account already registered"},
	{"already exists", "ALREADY_REGISTERED", http.StatusConflict, "account already registered"},
	{"expired token", "TOKEN_INVALID", http.StatusBadRequest, "token is invalid or expired"},
	{"token expired", "TOKEN_INVALID", http.StatusBadRequest, "token is invalid or expired"},
	{"invalid token", "TOKEN_INVALID", http.StatusBadRequest, "token is invalid or expired"},
	{"incorrect captcha", "CAPTCHA_INCORRECT", http.StatusBadRequest, "captcha answer is incorrect"},
	{"captcha", "CAPTCHA_INCORRECT", http.StatusBadRequest, "captcha answer is incorrect"},
	{"already subscribed", "ALREADY_SUBSCRIBED", http.StatusConflict, "email is already subscribed"},
}

// MapDomainError converts an upstream HTTP error into a coded AppError. The
// original detail is preserved for unmatched messages.
func MapDomainError(status int, detail string) *common.AppError {
	lowered := strings.ToLower(detail)
	for _, m := range domainMatchers {
		if strings.Contains(lowered, m.fragment) {
			return &common.AppError{
				Code:       m.code,
				Message:    m.message,
				HTTPStatus: m.status,
				Details:    map[string]any{"upstream": detail},
			}
		}
	}
	code := "UPSTREAM_ERROR"
	msg := detail
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusNotFound:
		code = "NOT_FOUND"
	case status == http.StatusUnauthorized:
		code = "UNAUTHORIZED"
	case status == http.StatusForbidden:
		code = "FORBIDDEN"
	case status >= 500:
		return Unavailable(nil)
	}
	return &common.AppError{Code: code, Message: msg, HTTPStatus: status}
}
