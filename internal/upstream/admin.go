package upstream

import (
	"context"
	"encoding/json"
	"net/url"
)

// Admin report payloads are proxied as-is; this service gates access by role
// but does not reshape the marketplace's reporting schemas.

// AdminAnalytics returns the platform analytics overview.
func (c *Client) AdminAnalytics(ctx context.Context, token string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.get(ctx, "admin", "/admin/analytics", nil, token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminSales returns the sales report for an optional period (e.g. "30d").
func (c *Client) AdminSales(ctx context.Context, token, period string) (json.RawMessage, error) {
	q := url.Values{}
	if period != "" {
		q.Set("period", period)
	}
	var out json.RawMessage
	if err := c.get(ctx, "admin", "/admin/sales", q, token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminUsers returns the user management listing.
func (c *Client) AdminUsers(ctx context.Context, token string, limit, offset int) (json.RawMessage, error) {
	q := TemplateQuery{Limit: limit, Offset: offset}.Values()
	var out json.RawMessage
	if err := c.get(ctx, "admin", "/admin/users", q, token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminWallet returns the platform wallet report.
func (c *Client) AdminWallet(ctx context.Context, token string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.get(ctx, "admin", "/admin/wallet", nil, token, &out); err != nil {
		return nil, err
	}
	return out, nil
}
