// Package knowledge is the HTTP client of the hub's knowledge API.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/psidex/graphmind/internal/graph"
	"github.com/psidex/graphmind/internal/protocol"
)

const (
	DefaultTimeout = 30 * time.Second
	// DefaultRateLimit is requests per second.
	DefaultRateLimit = 10.0
	DefaultBurst     = 5
)

var ErrInvalidDepth = fmt.Errorf("depth must be between %d and %d", protocol.MinDepth, protocol.MaxDepth)

// APIError is a non-2xx answer from the hub.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("knowledge api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("knowledge api: HTTP %d: %s", e.StatusCode, e.Message)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit allows r requests per second with bursts of burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithBreaker replaces the default circuit breaker settings. IsSuccessful is
// overridden so that 4xx answers never trip the breaker.
func WithBreaker(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = newBreaker(st)
	}
}

// DefaultBreakerSettings opens the breaker after 5 consecutive failures and probes
// again after 30 seconds.
func DefaultBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

func newBreaker(st gobreaker.Settings) *gobreaker.CircuitBreaker {
	st.IsSuccessful = func(err error) bool {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.StatusCode < 500
		}
		return err == nil || errors.Is(err, context.Canceled)
	}
	return gobreaker.NewCircuitBreaker(st)
}

// NewClient creates a client of the hub at baseURL, e.g. "http://localhost:8080".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultBurst),
		breaker:    newBreaker(DefaultBreakerSettings("knowledge")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the names of the stored knowledge topics.
func (c *Client) List(ctx context.Context) ([]string, error) {
	var topics []string
	if err := c.do(ctx, http.MethodGet, "/knowledges", nil, &topics); err != nil {
		return nil, fmt.Errorf("listing knowledges: %w", err)
	}
	if topics == nil {
		topics = []string{}
	}
	return topics, nil
}

// Get returns the snapshot of topic name.
func (c *Client) Get(ctx context.Context, name string) (graph.Snapshot, error) {
	var s graph.Snapshot
	if err := c.do(ctx, http.MethodGet, "/knowledges/"+url.PathEscape(name), nil, &s); err != nil {
		return graph.Snapshot{}, fmt.Errorf("getting knowledge %q: %w", name, err)
	}
	if err := protocol.Validator().Struct(s); err != nil {
		return graph.Snapshot{}, fmt.Errorf("getting knowledge %q: %w: %v", name, protocol.ErrMalformed, err)
	}
	return s, nil
}

// Create asks the hub to explore idea depth levels deep. The hub answers as soon as the
// job is queued; completion is announced by a knowledge_created event.
func (c *Client) Create(ctx context.Context, idea string, depth int) error {
	req := protocol.CreateRequest{Idea: idea, Depth: depth}
	if err := protocol.Validator().Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Field() == "depth" {
					return fmt.Errorf("%w, got %d", ErrInvalidDepth, depth)
				}
			}
		}
		return fmt.Errorf("invalid create request: %w", err)
	}

	var resp protocol.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/knowledges", req, &resp); err != nil {
		return fmt.Errorf("creating knowledge %q: %w", idea, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, body, out)
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrMalformed, err)
	}
	return nil
}

// errorMessage pulls a message out of an error body, which may be JSON or plain text.
func errorMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &m); err == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Error != "" {
			return m.Error
		}
	}
	return strings.TrimSpace(string(body))
}
