package server

import (
	"context"

	"go.uber.org/zap"

	"github.com/cubematch/telemetry/app/server/types"
	"github.com/cubematch/telemetry/pkg/analytics"
	"github.com/cubematch/telemetry/pkg/db/aggregate"
	"github.com/cubematch/telemetry/pkg/db/history"
	"github.com/cubematch/telemetry/pkg/ingest"
	"github.com/cubematch/telemetry/pkg/logging"
	"github.com/cubematch/telemetry/pkg/redis"
	"github.com/cubematch/telemetry/pkg/retention"
	"github.com/cubematch/telemetry/pkg/telemetry"
	"github.com/cubematch/telemetry/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	historyDb, err := history.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize history database", zap.Error(err))
	}

	persister, err := aggregate.NewClickHousePersister(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize aggregate database", zap.Error(err))
	}
	aggregates := aggregate.New(logger, persister)

	// Redis backs the leaderboard and the live feed (optional)
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - leaderboard and live feed will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for leaderboard and live feed")
		}
	} else {
		logger.Info("Redis disabled - leaderboard and live feed will not be available")
	}

	pipeline := ingest.New(logger, telemetry.NewValidator(logger), historyDb, aggregates, redisClient)
	engine := analytics.NewEngine(historyDb, aggregates, logger)

	purger := retention.New(logger, historyDb)
	if err := purger.Start(ctx); err != nil {
		logger.Fatal("Unable to schedule retention purge", zap.Error(err))
	}

	app := &types.App{
		History:     historyDb,
		Aggregates:  aggregates,
		Pipeline:    pipeline,
		Engine:      engine,
		Retention:   purger,
		RedisClient: redisClient,
		Logger:      logger,
	}

	return app
}
