// Package fetch provides the outbound HTTP transport used by provider clients.
// It centralizes request construction, JSON encoding, error typing and
// request metrics.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/saadbelcaidx/connector-os/internal/metrics"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "connector-os/1.0"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// Result holds the raw response of a request.
type Result struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
}

// Error represents an error during a provider request.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the request may succeed if repeated: transport
// failures, 429 and 5xx responses.
func (e *Error) Retryable() bool {
	if e.StatusCode == 0 {
		return e.Cause != nil
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound
}

// Options configures the request behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client
	// Label names the provider in request metrics.
	Label string
}

// DefaultOptions returns sensible defaults for requests.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// JSON sends body (when non-nil) as JSON and decodes a 2xx response into out
// (when non-nil). Non-2xx responses return the Result alongside an *Error.
func JSON(ctx context.Context, method, urlStr string, body, out any, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	label := opts.Label
	if label == "" {
		label = "unknown"
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{URL: urlStr, Message: "failed to encode request body", Cause: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(label, "error").Inc()
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ProviderRequestsTotal.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to read response body", StatusCode: resp.StatusCode, Cause: err}
	}

	result := &Result{
		URL:         urlStr,
		Body:        bodyBytes,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &Error{
			URL:        urlStr,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	if out != nil && len(bytes.TrimSpace(bodyBytes)) > 0 {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return result, &Error{URL: urlStr, Message: "failed to decode response body", StatusCode: resp.StatusCode, Cause: err}
		}
	}

	return result, nil
}
