package di

import (
	"context"

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

// Container holds every long-lived component of the monitor
type Container struct {
	Config *config.Config

	// Infrastructure
	Metrics   *metrics.Metrics
	API       *monitorapi.Client
	Scheduler *scheduler.Scheduler

	// Data
	Queries *queries.Set
	Core    *reconcile.Core
	Push    *push.Client

	// Outer surfaces
	Server *server.Server

	log     zerolog.Logger
	cancel  context.CancelFunc
	runDone chan struct{}
	started bool
}
