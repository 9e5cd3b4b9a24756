package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/analytics"
	"github.com/cubematch/telemetry/pkg/db"
	"github.com/cubematch/telemetry/pkg/ingest"
	"github.com/cubematch/telemetry/pkg/redis"
	"github.com/cubematch/telemetry/pkg/retention"
)

type App struct {
	History    db.HistoryStore
	Aggregates db.AggregateStore

	// Pipeline is the single write path for inbound rounds.
	Pipeline  *ingest.Pipeline
	Engine    *analytics.Engine
	Retention *retention.Scheduler

	// RedisClient backs the leaderboard and the live feed; nil when
	// REDIS_ENABLED is off.
	RedisClient *redis.Client

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start runs the server until the context is cancelled, then shuts
// everything down in reverse dependency order.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)

	if a.Retention != nil {
		a.Retention.Stop()
	}
	if a.Pipeline != nil {
		a.Pipeline.Close()
	}

	if err := a.Aggregates.Close(); err != nil {
		a.Logger.Error("Failed to close aggregate store", zap.Error(err))
	}
	if err := a.History.Close(); err != nil {
		a.Logger.Error("Failed to close history store", zap.Error(err))
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis client", zap.Error(err))
		}
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
