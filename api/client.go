// Package api is an HTTP binding of the platform's REST API, usable as a video_uploader.Gateway.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.ustream.tv"
	DefaultTimeout = 60 * time.Second

	// maxErrorBody limits how much of a failed response is kept in a TransportError.
	maxErrorBody = 4096
)

// TransportError is a REST response with a non-2xx status.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type Options struct {
	BaseURL string
	// HTTPClient must already add authentication, e.g. one built by golang.org/x/oauth2.
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		log:        zap.S().Named("api"),
	}
}

// AuthRequest sends one request, form-encoded if form is non-nil, and returns the raw JSON response body. Requests
// are never retried.
func (c *Client) AuthRequest(ctx context.Context, method, path string, form url.Values) (json.RawMessage, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debugf("%s %s", method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &TransportError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s %s: response is not JSON", method, path)
	}
	return data, nil
}
