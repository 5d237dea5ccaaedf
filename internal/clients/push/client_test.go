package push

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/aristath/sentimentedge/internal/events"
)

const (
	signalFrame   = `{"type":"signal","data":{"ticker":"GME","action":"BUY","timestamp":"2024-01-01T10:00:00Z","sentiment":0.72,"mention_count":140,"price":21.5,"reason":"surge"}}`
	positionFrame = `{"type":"position_update","data":{"ticker":"GME","quantity":10}}`
)

// serve starts a websocket server running fn per connection and returns its ws:// URL.
func serve(t *testing.T, fn func(ctx context.Context, conn *websocket.Conn)) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		fn(r.Context(), conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// holdOpen blocks until the peer goes away.
func holdOpen(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

type recorder struct {
	mu        sync.Mutex
	envelopes []events.Envelope
}

func (r *recorder) handle(env events.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, env)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.envelopes)
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.envelopes))
	for i, env := range r.envelopes {
		out[i] = env.Type
	}
	return out
}

type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	fire   bool
	funcs  []func()
}

func (d *delayRecorder) afterFunc(delay time.Duration, f func()) *time.Timer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delays = append(d.delays, delay)
	if d.fire {
		return time.AfterFunc(0, f)
	}
	d.funcs = append(d.funcs, f)
	return time.AfterFunc(time.Hour, func() {})
}

func (d *delayRecorder) recorded() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.delays...)
}

func TestBackoff(t *testing.T) {
	base := time.Second
	limit := 30 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{9, 30 * time.Second},
		{80, 30 * time.Second},
		{-1, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.attempt, base, limit), "attempt %d", tt.attempt)
	}
}

func TestBackoff_NonDecreasingAndCapped(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 0; attempt < 64; attempt++ {
		d := Backoff(attempt, 250*time.Millisecond, 10*time.Second)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, 10*time.Second)
		prev = d
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "open", StatusOpen.String())
	assert.Equal(t, "closed", StatusClosed.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "unknown", Status(42).String())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusClosed.Terminal())
}

func TestClient_DeliversDecodedEnvelopes(t *testing.T) {
	url := serve(t, func(ctx context.Context, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageBinary, []byte(signalFrame))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`not json`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"bogus","data":{}}`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"signal","data":{"ticker":"GME","action":"HOLD"}}`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(signalFrame))
		_ = conn.Write(ctx, websocket.MessageText, []byte(positionFrame))
		holdOpen(ctx, conn)
	})

	rec := &recorder{}
	client := New(Config{URL: url}, rec.handle, nil, zerolog.Nop())
	t.Cleanup(client.Stop)

	client.Connect()

	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []events.EventType{events.TypeSignal, events.TypePositionUpdate}, rec.types())
	assert.Equal(t, StatusOpen, client.Status())
	assert.NoError(t, client.LastError())
	assert.Equal(t, 0, client.Attempt())

	rec.mu.Lock()
	first := rec.envelopes[0]
	rec.mu.Unlock()
	sig, ok := first.Signal()
	require.True(t, ok)
	assert.Equal(t, "GME", sig.Ticker)
	assert.Equal(t, 140, sig.MentionCount)
}

func TestClient_ReconnectDelaysThenFails(t *testing.T) {
	// a closed server: every dial fails immediately
	server := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	delays := &delayRecorder{fire: true}
	client := New(Config{URL: url, MaxAttempts: 3}, func(events.Envelope) {}, nil, zerolog.Nop())
	client.afterFunc = delays.afterFunc
	t.Cleanup(client.Stop)

	var mu sync.Mutex
	var statuses []Status
	client.OnStatus(func(s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	})

	client.Connect()

	require.Eventually(t, func() bool { return client.Status() == StatusFailed }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, delays.recorded())
	assert.Equal(t, 3, client.Attempt())
	require.Error(t, client.LastError())
	assert.True(t, errors.Is(client.LastError(), ErrMaxAttempts))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, StatusConnecting, statuses[0])
	assert.Equal(t, StatusFailed, statuses[len(statuses)-1])
	for _, s := range statuses {
		assert.NotEqual(t, StatusOpen, s)
	}

	// nothing further is scheduled once failed
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, delays.recorded(), 3)
}

func TestClient_AttemptResetsOnOpen(t *testing.T) {
	// the server drops every connection right after the handshake
	url := serve(t, func(ctx context.Context, conn *websocket.Conn) {})

	delays := &delayRecorder{}
	client := New(Config{URL: url}, func(events.Envelope) {}, nil, zerolog.Nop())
	client.afterFunc = delays.afterFunc
	t.Cleanup(client.Stop)

	client.Connect()
	require.Eventually(t, func() bool { return len(delays.recorded()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StatusClosed, client.Status())
	assert.Equal(t, 1, client.Attempt())

	// fire the pending reconnect by hand: it opens, resets, then drops again
	delays.mu.Lock()
	next := delays.funcs[0]
	delays.mu.Unlock()
	go next()

	require.Eventually(t, func() bool { return len(delays.recorded()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, delays.recorded())
	assert.Equal(t, 1, client.Attempt())
}

func TestClient_StopPreventsFurtherDelivery(t *testing.T) {
	release := make(chan struct{})
	url := serve(t, func(ctx context.Context, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(signalFrame))
		select {
		case <-release:
		case <-ctx.Done():
			return
		}
		for i := 0; i < 5; i++ {
			_ = conn.Write(ctx, websocket.MessageText, []byte(signalFrame))
		}
		holdOpen(ctx, conn)
	})

	rec := &recorder{}
	delays := &delayRecorder{}
	client := New(Config{URL: url}, rec.handle, nil, zerolog.Nop())
	client.afterFunc = delays.afterFunc

	client.Connect()
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	client.Stop()
	close(release)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, rec.count())
	assert.Empty(t, delays.recorded(), "stop must not schedule a reconnect")

	// idempotent
	assert.NotPanics(t, client.Stop)
}

func TestClient_StopBeforeConnect(t *testing.T) {
	client := New(Config{URL: "ws://127.0.0.1:1/ws"}, func(events.Envelope) {}, nil, zerolog.Nop())
	client.Stop()
	client.Connect()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatusIdle, client.Status())
}

func TestClient_ConnectOnlyOnce(t *testing.T) {
	var mu sync.Mutex
	accepted := 0
	url := serve(t, func(ctx context.Context, conn *websocket.Conn) {
		mu.Lock()
		accepted++
		mu.Unlock()
		holdOpen(ctx, conn)
	})

	client := New(Config{URL: url}, func(events.Envelope) {}, nil, zerolog.Nop())
	t.Cleanup(client.Stop)

	client.Connect()
	client.Connect()
	client.Connect()

	require.Eventually(t, func() bool { return client.Status() == StatusOpen }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, accepted)
}
