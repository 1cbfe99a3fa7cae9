package stealth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultRequestTimeout bounds a single request end to end.
const DefaultRequestTimeout = 30 * time.Second

// maxBodyBytes caps response reads; listing pages and API payloads are
// far below this, full-size photos fit comfortably.
const maxBodyBytes = 32 << 20

// Client is a budgeted, browser-impersonating HTTP client for one
// source.
type Client struct {
	hc      *http.Client
	profile Profile
	budget  *Budget
	timeout time.Duration
}

// ClientConfig assembles a Client.
type ClientConfig struct {
	Profile  Profile
	Budget   *Budget
	ProxyURL *url.URL
	Timeout  time.Duration
}

// NewClient builds a client with the profile's transport. A nil budget
// means unbudgeted (used for the county API, which has its own token).
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &Client{
		hc: &http.Client{
			Transport: NewTransport(cfg.Profile, cfg.ProxyURL),
		},
		profile: cfg.Profile,
		budget:  cfg.Budget,
		timeout: timeout,
	}
}

// Get fetches a URL under the budget, returning the status code and
// body. Transport failures return an error; non-200 statuses do not.
func (c *Client) Get(ctx context.Context, rawURL string) (int, []byte, error) {
	return c.do(ctx, rawURL, nil)
}

// GetWithHeaders fetches with extra headers (e.g. an API token) layered
// over the profile set.
func (c *Client) GetWithHeaders(ctx context.Context, rawURL string, headers map[string]string) (int, []byte, error) {
	return c.do(ctx, rawURL, headers)
}

func (c *Client) do(ctx context.Context, rawURL string, headers map[string]string) (int, []byte, error) {
	if c.budget != nil {
		if err := c.budget.Wait(ctx); err != nil {
			return 0, nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request %s: %w", rawURL, err)
	}

	for name, value := range headers {
		req.Header.Set(name, value)
	}

	c.profile.Apply(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body %s: %w", rawURL, err)
	}

	return resp.StatusCode, body, nil
}
