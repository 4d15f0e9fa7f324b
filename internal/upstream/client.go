package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/templstore/storefront/internal/obs"
	"github.com/templstore/storefront/internal/resilience"
)

// Client is the typed interface to the remote marketplace API. All state
// lives upstream; this client only shapes requests and maps errors.
type Client struct {
	BaseURL string
	HTTP    resilience.HTTPClient
	Log     zerolog.Logger
}

// New constructs a client for the given base URL. The transport should carry
// otelhttp instrumentation; the resilience wrapper adds timeout and breaker.
func New(baseURL string, httpClient resilience.HTTPClient, log zerolog.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
		Log:     log,
	}
}

// upstreamError is the wire shape of marketplace API failures.
type upstreamError struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e upstreamError) text() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error.Message
}

func (c *Client) url(path string, query url.Values) string {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do executes the request, records metrics under group and decodes a JSON
// body into out when provided.
func (c *Client) do(ctx context.Context, group string, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.HTTP.Do(ctx, req)
	if obs.UpstreamLatency != nil {
		obs.UpstreamLatency.WithLabelValues(group).Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		countRequest(group, "transport_error")
		c.Log.Warn().Err(err).Str("group", group).Str("url", req.URL.String()).Msg("upstream_unreachable")
		return Unavailable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		countRequest(group, "read_error")
		return Unavailable(err)
	}
	if resp.StatusCode >= 400 {
		countRequest(group, "error")
		var ue upstreamError
		_ = json.Unmarshal(body, &ue)
		return MapDomainError(resp.StatusCode, ue.text())
	}
	countRequest(group, "ok")
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	return nil
}

func countRequest(group, result string) {
	if obs.UpstreamRequestsTotal != nil {
		obs.UpstreamRequestsTotal.WithLabelValues(group, result).Inc()
	}
}

func (c *Client) get(ctx context.Context, group, path string, query url.Values, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path, query), nil)
	if err != nil {
		return err
	}
	setAuth(req, token)
	return c.do(ctx, group, req, out)
}

func (c *Client) postJSON(ctx context.Context, group, path string, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(raw))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path, nil), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req, token)
	return c.do(ctx, group, req, out)
}

func (c *Client) postForm(ctx context.Context, group, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path, nil), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, group, req, out)
}

// Ping checks reachability for readiness probes. Any HTTP response counts;
// only transport failure is an error.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/categories", nil), nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return Unavailable(err)
	}
	_ = resp.Body.Close()
	return nil
}

func setAuth(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
