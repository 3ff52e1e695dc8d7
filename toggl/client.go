package toggl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sl5234/daylytics/config"
)

// maxResponseSize limits how much of an API response we read (10MB).
const maxResponseSize = 10 * 1024 * 1024

// defaultBaseURL is the public Toggl Track API host.
const defaultBaseURL = "https://api.track.toggl.com"

// Client talks to the Toggl Track v9 API.
type Client struct {
	baseURL    string
	email      string
	password   string
	apiToken   string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Toggl API client from configuration.
func NewClient(cfg config.TogglConfig, opts ...ClientOption) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		email:    cfg.Email,
		password: cfg.Password,
		apiToken: cfg.APIToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: slog.Default(),
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetTimeEntries fetches the entries whose start date falls within
// [start, end]. Dates are sent to the API as YYYY-MM-DD and entries come
// back in the order Toggl reports them. There are no retries; transient
// upstream trouble surfaces as a RetrievalError for the caller to handle.
func (c *Client) GetTimeEntries(ctx context.Context, start, end time.Time) ([]TimeEntry, error) {
	q := url.Values{}
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	endpoint := c.baseURL + "/api/v9/me/time_entries?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &RetrievalError{Op: "build request", Err: err}
	}

	// Toggl accepts either account credentials or an API token with the
	// fixed literal "api_token" as the password.
	if c.apiToken != "" {
		req.SetBasicAuth(c.apiToken, "api_token")
	} else {
		req.SetBasicAuth(c.email, c.password)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("fetching time entries",
		"start_date", q.Get("start_date"),
		"end_date", q.Get("end_date"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RetrievalError{Op: "call toggl", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &RetrievalError{Op: "read response", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &RetrievalError{
			Op:         "call toggl",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", msg),
		}
	}

	var entries []TimeEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &RetrievalError{Op: "decode response", StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Debug("fetched time entries", "count", len(entries))

	return entries, nil
}
