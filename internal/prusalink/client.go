package prusalink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// API paths of the PrusaLink v1 interface.
const (
	PathInfo   = "/api/v1/info"
	PathStatus = "/api/v1/status"
	PathJob    = "/api/v1/job"
)

// apiKeyHeader carries the static API key on every request.
const apiKeyHeader = "X-Api-Key"

// DefaultTimeout bounds a single request when the caller passes zero.
const DefaultTimeout = 750 * time.Millisecond

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// Client reads printer state from PrusaLink.
//
// Each Fetch method performs exactly one GET with no retries; the polling
// loop's next cycle is the retry.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a client for the printer at address.
//
// address is a host or host:port ("192.168.1.20") or a full base URL
// ("http://printer.local"). Requests are bounded by timeout.
func New(address, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base := strings.TrimRight(address, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		apiKey:  apiKey,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the printer URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchInfo reads the device info document.
func (c *Client) FetchInfo(ctx context.Context) (*Info, error) {
	var info Info
	status, err := c.get(ctx, PathInfo, &info)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, unexpected(PathInfo, status)
	}
	return &info, nil
}

// FetchStatus reads the device status document.
func (c *Client) FetchStatus(ctx context.Context) (*Status, error) {
	var st Status
	status, err := c.get(ctx, PathStatus, &st)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, unexpected(PathStatus, status)
	}
	return &st, nil
}

// FetchJob reads the active job document.
//
// A 204 No Content answer means no job is active. It returns (nil, nil)
// because that is a normal printer state, not a failure.
func (c *Client) FetchJob(ctx context.Context) (*Job, error) {
	var job Job
	status, err := c.get(ctx, PathJob, &job)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return &job, nil
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, unexpected(PathJob, status)
	}
}

// get performs one GET and decodes a 200 body into out.
// Non-200 bodies are drained and discarded.
func (c *Client) get(ctx context.Context, path string, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrRequestFailed, path, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrRequestFailed, path, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodySize)

	if resp.StatusCode != http.StatusOK {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, body)
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %s: %w", ErrDecodeFailed, path, err)
	}
	return resp.StatusCode, nil
}

func unexpected(path string, status int) error {
	return fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, path, status)
}
