// Package di provides dependency injection wiring and lifecycle.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/sentimentedge/internal/clients/monitorapi"
	"github.com/aristath/sentimentedge/internal/clients/push"
	"github.com/aristath/sentimentedge/internal/config"
	"github.com/aristath/sentimentedge/internal/metrics"
	"github.com/aristath/sentimentedge/internal/queries"
	"github.com/aristath/sentimentedge/internal/reconcile"
	"github.com/aristath/sentimentedge/internal/scheduler"
	"github.com/aristath/sentimentedge/internal/server"
)

// Wire builds a fully configured container. Nothing is started.
// Order of operations:
// 1. Metrics and REST client
// 2. Queries and their poll jobs
// 3. Reconciliation core
// 4. Push channel, feeding the core
// 5. Status API
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	c := &Container{
		Config: cfg,
		log:    log.With().Str("component", "di").Logger(),
	}

	// Step 1: Infrastructure
	c.Metrics = metrics.New()
	c.API = monitorapi.NewClient(cfg.APIURL, monitorapi.Options{
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.HTTPRateLimit,
		Metrics:   c.Metrics,
	}, log)

	// Step 2: Queries
	initial := queries.SentimentSelection{
		Window: cfg.SentimentWindow,
		Limit:  cfg.SentimentLimit,
	}
	if len(cfg.DefaultTickers) > 0 {
		initial.Ticker = cfg.DefaultTickers[0]
	}
	c.Queries = queries.NewSet(c.API, queries.SetConfig{
		TradesLimit: cfg.TradesLimit,
		Sentiment:   initial,
		Timeout: cfg.HTTPTimeout,
	}, c.Metrics, log)

	c.Scheduler = scheduler.New(log)
	if err := c.Queries.Register(c.Scheduler, cfg.PollInterval, cfg.SentimentPollInterval); err != nil {
		return nil, fmt.Errorf("failed to register poll jobs: %w", err)
	}

	// Step 3: Core
	c.Core = reconcile.New(reconcile.Sources{
		Positions:   c.Queries.Positions,
		Trades:      c.Queries.Trades,
		Performance: c.Queries.Performance,
		Sentiment:   c.Queries.Sentiment,
	}, reconcile.Options{
		BufferSize:     cfg.SignalBufferSize,
		FeedSize:       cfg.SignalFeedSize,
		DefaultTickers: cfg.DefaultTickers,
		TickerLimit:    cfg.TickerLimit,
	}, c.Metrics, log)

	// Step 4: Push channel
	c.Push = push.New(push.Config{
		URL:         cfg.PushURL,
		BaseDelay:   cfg.Reconnect.BaseDelay,
		MaxDelay:    cfg.Reconnect.MaxDelay,
		MaxAttempts: cfg.Reconnect.MaxAttempts,
	}, c.Core.Enqueue, c.Metrics, log)
	c.Push.OnStatus(func(s push.Status) {
		c.log.Debug().Str("status", s.String()).Msg("Push channel status changed")
	})
	c.Core.AttachChannel(c.Push)

	// Step 5: Status API
	c.Server = server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Core:      c.Core,
		Sentiment: c.Queries.Sentiment,
		Backend:   c.API,
		Metrics:   c.Metrics,
	})

	c.log.Info().
		Str("api_url", cfg.APIURL).
		Str("push_url", cfg.PushURL).
		Strs("jobs", c.Scheduler.Jobs()).
		Msg("Dependency injection wiring completed successfully")

	return c, nil
}

// Start launches the reconciliation loop, the pollers and the push channel.
// The status API is started separately by the caller.
func (c *Container) Start(ctx context.Context) {
	if c.started {
		return
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.runDone = make(chan struct{})
	go func() {
		defer close(c.runDone)
		c.Core.Run(runCtx)
	}()

	c.Scheduler.Start()
	c.Queries.RefetchAll()
	c.Push.Connect()
}

// Stop tears down in dependency order: push, pollers, core, queries.
func (c *Container) Stop() {
	c.Push.Stop()
	c.Scheduler.Stop()
	c.Core.Close()
	if c.cancel != nil {
		c.cancel()
		<-c.runDone
	}
	c.Queries.Close()
	c.log.Info().Msg("Monitor stopped")
}
