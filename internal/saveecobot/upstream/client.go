// Package upstream provides a client for the SaveEcoBot output API.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/saveecobot/ecosensor/internal/provider/resilience"
	"github.com/saveecobot/ecosensor/internal/saveecobot"
)

const (
	// DefaultURL is the SaveEcoBot station feed.
	DefaultURL = "https://api.saveecobot.com/output.json"

	// ProviderName identifies this provider.
	ProviderName = "saveecobot"

	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 20 * time.Second

	bodySnippetLimit = 512
)

// ClientConfig holds configuration for the SaveEcoBot client.
type ClientConfig struct {
	// URL is the feed URL (defaults to DefaultURL).
	URL string

	// HTTPClient is the HTTP client to use.
	// If nil, a resilient client without retries is created.
	HTTPClient HTTPDoer

	// Timeout for the request (default: 20s). Ignored when HTTPClient is set.
	Timeout time.Duration

	// Registry tracks provider health for the default client. Optional.
	Registry *resilience.Registry

	// Logger receives circuit breaker state changes of the default client.
	Logger zerolog.Logger
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

var errNullBody = errors.New("response body is null")

// StatusError is returned when the API answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from saveecobot api", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return saveecobot.ErrBadResponse
}

// DecodeError is returned when the response body is not a JSON array.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode saveecobot response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() []error {
	return []error{saveecobot.ErrBadResponse, e.Err}
}

// Client is a SaveEcoBot API client.
type Client struct {
	url        string
	httpClient HTTPDoer
}

// NewClient creates a new SaveEcoBot client.
func NewClient(cfg ClientConfig) *Client {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		// Bad statuses are routine refresh failures and must not trip the breaker;
		// an open circuit is reported as not ready.
		breaker := resilience.DefaultCircuitBreakerConfig(ProviderName)
		breaker.IsSuccessful = resilience.IgnoreServerErrors

		// Retrying is left to the caller's next tick.
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      0,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			CircuitBreaker:  &breaker,
			Registry:        cfg.Registry,
			Logger:          cfg.Logger,
		})
	}

	return &Client{
		url:        strings.TrimSpace(url),
		httpClient: httpClient,
	}
}

// FetchStations retrieves the raw station array.
func (c *Client) FetchStations(ctx context.Context) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, bodySnippetLimit))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var entries []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		if interruptedRead(err) {
			return nil, fmt.Errorf("read stations: %w", err)
		}
		return nil, &DecodeError{Err: err}
	}
	if entries == nil {
		return nil, &DecodeError{Err: errNullBody}
	}
	return entries, nil
}

// interruptedRead reports body read failures that are transport problems
// (timeouts, resets, truncated bodies) rather than a malformed payload.
func interruptedRead(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
