package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cubematch/telemetry/pkg/retry"
	"github.com/cubematch/telemetry/pkg/utils"
	"go.uber.org/zap"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Client wraps a ClickHouse connection with its logger and target database.
type Client struct {
	Logger   *zap.Logger
	Db       driver.Conn
	Database string
}

const (
	MergeTree          = "MergeTree"
	ReplacingMergeTree = "ReplacingMergeTree"
)

// New initializes a ClickHouse client for the given database name.
// The connection is retried with backoff so the service survives a slow
// database during deploys.
func New(ctx context.Context, logger *zap.Logger, dbName string) (client Client, e error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client.Logger = logger
	client.Database = dbName

	dsn := utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000?sslmode=disable")
	addr, username, password := parseDSN(dsn)

	options := &clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: username,
			Password: password,
		},
		DialTimeout:     30 * time.Second,
		MaxOpenConns:    utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: time.Hour,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		Settings: clickhouse.Settings{
			"prefer_column_name_to_alias": 1,
		},
	}

	if logger.Core().Enabled(zap.DebugLevel) {
		sugar := logger.Named("clickhouse.driver").Sugar()
		options.Debugf = sugar.Debugf
	}

	err := retry.WithBackoff(connCtx, retry.ConnectConfig(), logger, "clickhouse_connection", func() error {
		conn, err := clickhouse.Open(options)
		if err != nil {
			return fmt.Errorf("failed to open clickhouse connection: %w", err)
		}

		if err := conn.Ping(connCtx); err != nil {
			return fmt.Errorf("failed to ping clickhouse: %w", err)
		}

		client.Db = conn
		return nil
	})
	if err != nil {
		return Client{}, err
	}

	if err := client.Db.Exec(connCtx, fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS "%s"`, dbName)); err != nil {
		return Client{}, fmt.Errorf("failed to create database %s: %w", dbName, err)
	}

	logger.Info("ClickHouse connection ready",
		zap.String("database", dbName),
		zap.String("addr", addr))

	return client, nil
}

// Health pings the connection.
func (c Client) Health(ctx context.Context) error {
	return c.Db.Ping(ctx)
}

// parseDSN extracts the host:port and credentials from a clickhouse:// DSN.
func parseDSN(dsn string) (addr, username, password string) {
	addr = dsn
	addr = strings.TrimPrefix(addr, "clickhouse://")
	if i := strings.Index(addr, "?"); i >= 0 {
		addr = addr[:i]
	}
	if i := strings.Index(addr, "@"); i >= 0 {
		creds := addr[:i]
		addr = addr[i+1:]
		if j := strings.Index(creds, ":"); j >= 0 {
			username = creds[:j]
			password = creds[j+1:]
		} else {
			username = creds
		}
	}
	if i := strings.Index(addr, "/"); i >= 0 {
		addr = addr[:i]
	}
	if username == "" {
		username = utils.Env("CLICKHOUSE_USER", "default")
	}
	if password == "" {
		password = utils.Env("CLICKHOUSE_PASSWORD", "")
	}
	return addr, username, password
}

// SanitizeName sanitizes the provided database name to be compatible with ClickHouse.
func SanitizeName(id string) string {
	s := strings.ToLower(id)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	return s
}
