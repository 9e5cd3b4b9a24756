package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cubematch/telemetry/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Leaderboard sorted-set keys. Scores are ZADD GT for best score so a
// lower round can never demote a player, and ZINCRBY for cumulative score.
const (
	LeaderboardBestKey  = "cubematch:leaderboard:best"
	LeaderboardTotalKey = "cubematch:leaderboard:total"

	RoundsChannel = "cubematch:rounds"
)

// Client wraps the Redis client for leaderboards and real-time round events.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

// Entry is one leaderboard row.
type Entry struct {
	UserID string  `json:"userId"`
	Score  float64 `json:"score"`
	Rank   int64   `json:"rank"`
}

// NewClient creates a new Redis client using environment variables for configuration.
// Environment variables:
//   - REDIS_HOST: Redis host (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_DB: Redis database number (default: "0")
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", addr),
		zap.Int("db", db))

	return &Client{
		client: rdb,
		logger: logger,
	}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Health checks if Redis is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Publish publishes a message to a Redis Pub/Sub channel.
// This is a best-effort operation - errors are logged but not returned
// so a Redis hiccup never fails an accepted ingestion.
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) {
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		c.logger.Warn("Failed to publish Redis message",
			zap.String("channel", channel),
			zap.Error(err))
	}
}

// Subscribe subscribes to one or more Redis Pub/Sub channels.
// The caller is responsible for closing the PubSub object when done.
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.client.Subscribe(ctx, channels...)
}

// RecordScore updates both leaderboards for a user. Best-effort: the
// leaderboard lags rather than blocking ingestion when Redis is down.
func (c *Client) RecordScore(ctx context.Context, userID string, score uint64) {
	if err := c.client.ZAddGT(ctx, LeaderboardBestKey, redis.Z{
		Score:  float64(score),
		Member: userID,
	}).Err(); err != nil {
		c.logger.Warn("Failed to update best-score leaderboard",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	if err := c.client.ZIncrBy(ctx, LeaderboardTotalKey, float64(score), userID).Err(); err != nil {
		c.logger.Warn("Failed to update total-score leaderboard",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// Top returns the highest-ranked limit entries for the given leaderboard key.
func (c *Client) Top(ctx context.Context, key string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := c.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard range failed: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i, z := range rows {
		member, _ := z.Member.(string)
		entries = append(entries, Entry{
			UserID: member,
			Score:  z.Score,
			Rank:   int64(i + 1),
		})
	}
	return entries, nil
}
