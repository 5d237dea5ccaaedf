// Package push maintains the live event channel to the trading backend.
//
// The client dials a websocket, decodes each text frame as an events.Envelope
// and hands it to a single handler. Lost connections are retried with capped
// exponential backoff until the attempt ceiling is reached, after which the
// client parks in StatusFailed and schedules nothing further.
package push

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/sentimentedge/internal/events"
	"github.com/aristath/sentimentedge/internal/metrics"
)

const (
	defaultBaseDelay   = 1 * time.Second
	defaultMaxDelay    = 30 * time.Second
	defaultMaxAttempts = 10
	defaultDialTimeout = 15 * time.Second

	// frames above this are rejected by the reader
	readLimit = 1 << 20
)

// ErrMaxAttempts is recorded as the last error once reconnects are exhausted
var ErrMaxAttempts = errors.New("push channel: reconnect attempts exhausted")

// Handler receives every decoded envelope, in arrival order, from the reader goroutine.
// It must not call Stop.
type Handler func(events.Envelope)

// StatusListener is notified on every status transition
type StatusListener func(Status)

// Config controls dialing and reconnect behaviour
type Config struct {
	URL         string
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	DialTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	return c
}

// Backoff returns min(base * 2^attempt, limit).
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= limit || delay <= 0 {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}

// Client is the push channel client
type Client struct {
	cfg        Config
	handler    Handler
	httpClient *http.Client
	metrics    *metrics.Metrics
	log        zerolog.Logger

	mu        sync.Mutex
	status    Status
	attempt   int
	lastErr   error
	conn      *websocket.Conn
	ctx       context.Context
	cancel    context.CancelFunc
	timer     *time.Timer
	listeners []StatusListener
	started   bool
	stopped   bool
	gen       uint64 // bumped per dial; stale readers compare against it

	// held while the handler runs so Stop can wait out an in-flight delivery
	deliverMu sync.Mutex

	afterFunc func(time.Duration, func()) *time.Timer
}

// createHTTP1Client forces HTTP/1.1: the websocket upgrade fails over HTTP/2 behind some proxies.
func createHTTP1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				NextProtos: []string{"http/1.1"},
			},
			ForceAttemptHTTP2: false,
		},
	}
}

// New creates a push client. Nothing is dialed until Connect.
func New(cfg Config, handler Handler, m *metrics.Metrics, log zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:        cfg.withDefaults(),
		handler:    handler,
		httpClient: createHTTP1Client(),
		metrics:    m,
		log:        log.With().Str("component", "push").Logger(),
		status:     StatusIdle,
		ctx:        ctx,
		cancel:     cancel,
		afterFunc:  time.AfterFunc,
	}
}

// OnStatus registers a listener. Listeners run with the client lock held and must not call back into the client.
func (c *Client) OnStatus(l StatusListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Connect starts the connection in the background. Only the first call has any effect.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.log.Info().Str("url", c.cfg.URL).Msg("Starting push channel client")
	go c.dial()
}

// Stop cancels any pending reconnect and closes the connection.
// No handler invocation happens after Stop returns.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.cancel()
	c.mu.Unlock()

	// barrier: wait for a delivery that passed its liveness check before stopped was set
	c.deliverMu.Lock()
	c.deliverMu.Unlock() //nolint:staticcheck // empty critical section is the point

	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "client stopping"); err != nil {
			c.log.Debug().Err(err).Msg("Error closing push connection")
		}
	}
	c.log.Info().Msg("Push channel client stopped")
}

// Status returns the current connection status
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastError returns the most recent transport error, or nil
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Attempt returns the consecutive reconnect count since the last Open
func (c *Client) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

func (c *Client) dial() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.gen++
	gen := c.gen
	ctx := c.ctx
	c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, &websocket.DialOptions{
		HTTPClient: c.httpClient,
	})
	cancel()
	if err != nil {
		c.closed(gen, fmt.Errorf("failed to dial push channel: %w", err))
		return
	}
	conn.SetReadLimit(readLimit)

	c.mu.Lock()
	if c.stopped || gen != c.gen {
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	c.conn = conn
	c.attempt = 0
	c.lastErr = nil
	c.setStatusLocked(StatusOpen)
	c.mu.Unlock()

	c.log.Info().Msg("Push channel connected")
	c.readMessages(ctx, conn, gen)
}

func (c *Client) readMessages(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			switch {
			case ctx.Err() != nil:
				c.log.Debug().Msg("Read cancelled by context")
			case closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway:
				c.log.Info().Int("status", int(closeStatus)).Msg("Push channel closed by server")
			default:
				c.log.Warn().Err(err).Msg("Push channel read error")
			}
			c.closed(gen, err)
			return
		}

		if msgType != websocket.MessageText {
			c.log.Debug().Int("type", int(msgType)).Msg("Ignoring non-text frame")
			continue
		}

		env, err := events.Decode(message)
		if err != nil {
			c.log.Warn().Err(err).Str("frame", truncate(message, 256)).Msg("Dropping undecodable push frame")
			c.metrics.ObserveEnvelope("unknown", "decode_error")
			continue
		}

		c.log.Debug().Str("type", string(env.Type)).Msg("Push envelope received")
		c.deliver(gen, env)
	}
}

func (c *Client) deliver(gen uint64, env events.Envelope) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	live := !c.stopped && gen == c.gen
	c.mu.Unlock()
	if !live {
		return
	}
	c.handler(env)
}

// closed records a lost connection and schedules the next dial, or gives up.
func (c *Client) closed(gen uint64, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || gen != c.gen {
		return
	}

	c.conn = nil
	c.lastErr = cause
	c.setStatusLocked(StatusClosed)

	if c.attempt >= c.cfg.MaxAttempts {
		c.lastErr = fmt.Errorf("%w after %d attempts: %v", ErrMaxAttempts, c.attempt, cause)
		c.setStatusLocked(StatusFailed)
		c.log.Error().Err(c.lastErr).Msg("Push channel giving up")
		return
	}

	delay := Backoff(c.attempt, c.cfg.BaseDelay, c.cfg.MaxDelay)
	c.attempt++
	c.metrics.IncReconnect()
	c.log.Info().
		Int("attempt", c.attempt).
		Dur("delay", delay).
		Msg("Scheduling push channel reconnect")
	c.timer = c.afterFunc(delay, c.dial)
}

func (c *Client) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	c.metrics.SetPushStatus(int(s))
	for _, l := range c.listeners {
		l(s)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
