package googleads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/frans-sjostrom/ads-insights/internal/config"
	"github.com/frans-sjostrom/ads-insights/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL    = "https://googleads.googleapis.com"
	DefaultAPIVersion = "v18"

	maxPages     = 100
	maxErrorBody = 64 << 10
)

type ClientOptions struct {
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	// Timeout bounds each HTTP round trip, not the time spent queued in the limiter.
	Timeout time.Duration
}

// Client talks to the Google Ads REST API. Every request goes through the
// shared limiter.
type Client struct {
	baseURL    string
	creds      config.Credentials
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	timeout    time.Duration
	logger     *zap.Logger
}

// Call carries the per-request identity: whose token, which customer, and
// the manager account the request is made through, if any.
type Call struct {
	AccessToken     string
	CustomerID      string
	LoginCustomerID string
}

func NewClient(creds config.Credentials, limiter *ratelimit.Limiter, opts ClientOptions, logger *zap.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := opts.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/" + version,
		creds:      creds,
		httpClient: httpClient,
		limiter:    limiter,
		timeout:    opts.Timeout,
		logger:     logger,
	}
}

// requestError is a non-2xx answer from the Ads API.
type requestError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *requestError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("google ads api %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("google ads api %d: %s", e.StatusCode, e.Message)
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Errors []struct {
				ErrorCode map[string]string `json:"errorCode"`
				Message   string            `json:"message"`
			} `json:"errors"`
		} `json:"details"`
	} `json:"error"`
}

// ListAccessibleCustomers returns the customer IDs the token can reach directly.
func (c *Client) ListAccessibleCustomers(ctx context.Context, accessToken string) ([]string, error) {
	var resp struct {
		ResourceNames []string `json:"resourceNames"`
	}
	if err := c.do(ctx, http.MethodGet, "/customers:listAccessibleCustomers", Call{AccessToken: accessToken}, nil, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.ResourceNames))
	for _, name := range resp.ResourceNames {
		ids = append(ids, strings.TrimPrefix(name, "customers/"))
	}
	return ids, nil
}

type searchRequest struct {
	Query     string `json:"query"`
	PageToken string `json:"pageToken,omitempty"`
}

type searchResponse struct {
	Results       []json.RawMessage `json:"results"`
	NextPageToken string            `json:"nextPageToken"`
}

func (c *Client) searchPage(ctx context.Context, call Call, query, pageToken string) (*searchResponse, error) {
	if call.CustomerID == "" {
		return nil, errors.New("customer id is required")
	}
	var resp searchResponse
	path := "/customers/" + call.CustomerID + "/googleAds:search"
	if err := c.do(ctx, http.MethodPost, path, call, searchRequest{Query: query, PageToken: pageToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search runs a GAQL query and decodes every row of every page into T.
func Search[T any](ctx context.Context, c *Client, call Call, query string) ([]T, error) {
	var rows []T
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		resp, err := c.searchPage(ctx, call, query, pageToken)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Results {
			var row T
			if err := json.Unmarshal(raw, &row); err != nil {
				return nil, fmt.Errorf("decode search row: %w", err)
			}
			rows = append(rows, row)
		}
		if resp.NextPageToken == "" {
			return rows, nil
		}
		pageToken = resp.NextPageToken
	}

	c.logger.Warn("search result truncated",
		zap.String("customer_id", call.CustomerID),
		zap.Int("pages", maxPages),
	)
	return rows, nil
}

func (c *Client) do(ctx context.Context, method, path string, call Call, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	return c.limiter.Do(ctx, func(ctx context.Context) error {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+call.AccessToken)
		req.Header.Set("developer-token", c.creds.DeveloperToken)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if login := c.loginCustomerID(call); login != "" {
			req.Header.Set("login-customer-id", login)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("google ads request: %w", err)
		}
		defer resp.Body.Close()

		c.logger.Debug("google ads request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)

		if resp.StatusCode >= http.StatusMultipleChoices {
			return parseError(resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func (c *Client) loginCustomerID(call Call) string {
	if call.LoginCustomerID != "" {
		return call.LoginCustomerID
	}
	return c.creds.LoginCustomerID
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	rerr := &requestError{StatusCode: resp.StatusCode}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Message == "" {
		rerr.Message = strings.TrimSpace(string(body))
		if rerr.Message == "" {
			rerr.Message = http.StatusText(resp.StatusCode)
		}
		return rerr
	}

	rerr.Status = env.Error.Status
	parts := []string{env.Error.Message}
	for _, d := range env.Error.Details {
		for _, e := range d.Errors {
			for _, code := range e.ErrorCode {
				parts = append(parts, code+": "+e.Message)
			}
		}
	}
	rerr.Message = strings.Join(parts, "; ")
	return rerr
}
