// Package monitorapi provides typed access to the trading backend's REST endpoints.
// Every call is independent; caching and refresh live in the queries package.
package monitorapi

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

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/aristath/sentimentedge/internal/domain"
	"github.com/aristath/sentimentedge/internal/metrics"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRateLimit = 10
	maxBodyBytes     = 8 << 20
)

// ErrUnexpectedStatus is wrapped by StatusError
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// StatusError reports a non-200 response
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d", e.Path, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// Options tunes the HTTP client
type Options struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     int
	Metrics   *metrics.Metrics // optional; counts rows dropped by validation
}

// TradeQuery filters the trades endpoint
type TradeQuery struct {
	Limit  int
	Ticker string // optional
}

// Health is the backend health probe response
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Client is the REST API client.
type Client struct {
	baseURL    string
	healthURL  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewClient creates a new REST client for baseURL (e.g. http://localhost:8000/api).
func NewClient(baseURL string, opts Options, log zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.Burst <= 0 {
		// positions, trades, performance and sentiment may all fire on the same tick
		opts.Burst = 4
	}

	c := &Client{
		baseURL:   baseURL,
		healthURL: healthURLFor(baseURL),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
		metrics: opts.Metrics,
		log:     log.With().Str("component", "monitorapi").Logger(),
	}
	c.breaker = newBreaker(c.log)
	return c
}

func newBreaker(log zerolog.Logger) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: "monitorapi"}
	st.Interval = 60 * time.Second
	st.Timeout = 15 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	}
	// Client errors and caller cancellation say nothing about backend health
	st.IsSuccessful = func(err error) bool {
		if err == nil || errors.Is(err, context.Canceled) {
			return true
		}
		var se *StatusError
		if errors.As(err, &se) {
			return se.StatusCode < 500
		}
		return false
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	}
	return gobreaker.NewCircuitBreaker(st)
}

// healthURLFor strips the API path: the probe lives at the origin root.
func healthURLFor(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL + "/health"
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/health"}).String()
}

// Positions fetches all open positions
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	var positions []domain.Position
	if err := c.getList(ctx, "/positions", nil, "positions", &positions); err != nil {
		return nil, err
	}
	return keepValid(c, "positions", positions), nil
}

// Trades fetches recent trades, newest first as served
func (c *Client) Trades(ctx context.Context, q TradeQuery) ([]domain.Trade, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Ticker != "" {
		params.Set("ticker", q.Ticker)
	}

	var trades []domain.Trade
	if err := c.getList(ctx, "/trades", params, "trades", &trades); err != nil {
		return nil, err
	}
	return keepValid(c, "trades", trades), nil
}

// Sentiment fetches the aggregated sentiment series for one ticker and window
func (c *Client) Sentiment(ctx context.Context, ticker string, window domain.Window, limit int) ([]domain.SentimentPoint, error) {
	if ticker == "" {
		return nil, fmt.Errorf("sentiment: ticker is required")
	}
	if !window.Valid() {
		return nil, fmt.Errorf("sentiment: unsupported window %q", window)
	}

	params := url.Values{"window": {string(window)}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var points []domain.SentimentPoint
	if err := c.getList(ctx, "/sentiment/"+url.PathEscape(ticker), params, "points", &points); err != nil {
		return nil, err
	}
	return points, nil
}

// Performance fetches aggregate performance
func (c *Client) Performance(ctx context.Context) (domain.Performance, error) {
	var perf domain.Performance
	body, err := c.get(ctx, c.baseURL+"/performance", "/performance", nil)
	if err != nil {
		return perf, err
	}
	if err := json.Unmarshal(body, &perf); err != nil {
		return perf, fmt.Errorf("failed to decode /performance: %w", err)
	}
	if err := perf.Validate(); err != nil {
		c.metrics.ObserveRejected("performance", 1)
		return domain.Performance{}, err
	}
	return perf, nil
}

// Health probes the backend
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	body, err := c.get(ctx, c.healthURL, "/health", nil)
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(body, &h); err != nil {
		return h, fmt.Errorf("failed to decode /health: %w", err)
	}
	return h, nil
}

// BreakerState reports the circuit breaker state (closed, half-open, open)
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Internal helpers

func (c *Client) getList(ctx context.Context, path string, params url.Values, key string, target interface{}) error {
	body, err := c.get(ctx, c.baseURL+path, path, params)
	if err != nil {
		return err
	}
	if err := decodeList(body, key, target); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, rawURL, path)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) do(ctx context.Context, rawURL, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("API request completed")

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Path: path, StatusCode: resp.StatusCode}
	}
	return body, nil
}

type validator interface {
	Validate() error
}

// keepValid drops rows that fail validation so one bad row never hides the rest.
func keepValid[T validator](c *Client, resource string, rows []T) []T {
	kept := rows[:0]
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			c.log.Warn().Err(err).Str("resource", resource).Msg("Dropping invalid row")
			continue
		}
		kept = append(kept, row)
	}
	c.metrics.ObserveRejected(resource, len(rows)-len(kept))
	return kept
}

// decodeList accepts a bare JSON array or an object wrapping the array under key.
func decodeList(body []byte, key string, target interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, target)
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	raw, ok := wrapped[key]
	if !ok {
		return fmt.Errorf("response has neither an array nor a %q field", key)
	}
	return json.Unmarshal(raw, target)
}
