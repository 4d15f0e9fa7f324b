package upstream

import "context"

// Captcha is the arithmetic challenge guarding newsletter subscription.
type Captcha struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}

// NewsletterCaptcha fetches a fresh challenge.
func (c *Client) NewsletterCaptcha(ctx context.Context) (Captcha, error) {
	var out Captcha
	if err := c.get(ctx, "newsletter", "/newsletter/captcha", nil, "", &out); err != nil {
		return Captcha{}, err
	}
	return out, nil
}

// NewsletterSubscribe subscribes an email, submitting the captcha answer.
func (c *Client) NewsletterSubscribe(ctx context.Context, email, captchaID, answer string) error {
	payload := map[string]string{
		"email":          email,
		"captcha_id":     captchaID,
		"captcha_answer": answer,
	}
	return c.postJSON(ctx, "newsletter", "/newsletter/subscribe", "", payload, nil)
}

// NewsletterUnsubscribe removes an email from the list.
func (c *Client) NewsletterUnsubscribe(ctx context.Context, email string) error {
	return c.postJSON(ctx, "newsletter", "/newsletter/unsubscribe", "", map[string]string{"email": email}, nil)
}
