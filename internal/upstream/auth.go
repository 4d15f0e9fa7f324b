package upstream

import (
	"context"
	"net/url"
)

// LoginResult is the payload returned by the marketplace login endpoint.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        int    `json:"role"`
	Username    string `json:"username"`
}

// SignupRequest is the registration payload forwarded upstream. Password
// confirmation and terms acceptance are validated locally and never sent.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Login exchanges credentials for an access token. The endpoint consumes a
// form-encoded body, not JSON.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	var out LoginResult
	if err := c.postForm(ctx, "auth", "/auth/login", form, &out); err != nil {
		return LoginResult{}, err
	}
	return out, nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	return c.postJSON(ctx, "auth", "/auth/signup", "", req, nil)
}

// ResendVerification requests a fresh verification email.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	return c.postJSON(ctx, "auth", "/auth/resend-verification", "", map[string]string{"email": email}, nil)
}

// VerifyEmail confirms an email address with the emailed token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	q := url.Values{}
	q.Set("token", token)
	return c.get(ctx, "auth", "/auth/verify-email", q, "", nil)
}

// ForgotPassword starts the password reset flow.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.postJSON(ctx, "auth", "/auth/forgot-password", "", map[string]string{"email": email}, nil)
}

// VerifyResetToken checks whether a reset token is still usable.
func (c *Client) VerifyResetToken(ctx context.Context, token string) error {
	return c.get(ctx, "auth", "/auth/verify-reset-token/"+url.PathEscape(token), nil, "", nil)
}

// ResetPassword completes the reset flow with the token and new password.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	payload := map[string]string{"token": token, "new_password": newPassword}
	return c.postJSON(ctx, "auth", "/auth/reset-password", "", payload, nil)
}
