package aggregate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/db/clickhouse"
	"github.com/cubematch/telemetry/pkg/telemetry"
	"github.com/cubematch/telemetry/pkg/utils"
)

const AggregatesTableName = "user_aggregates"

// ClickHousePersister stores aggregate rows in a ReplacingMergeTree
// versioned by total_games, so the row with the most applied records
// wins background merges and FINAL reads.
type ClickHousePersister struct {
	clickhouse.Client
	Name string
}

// NewClickHousePersister connects and ensures the aggregates table exists.
func NewClickHousePersister(ctx context.Context, logger *zap.Logger) (*ClickHousePersister, error) {
	dbName := clickhouse.SanitizeName(utils.Env("TELEMETRY_DB", "cubematch_telemetry"))

	client, err := clickhouse.New(ctx, logger.With(
		zap.String("db", dbName),
		zap.String("component", "aggregates"),
	), dbName)
	if err != nil {
		return nil, err
	}

	p := &ClickHousePersister{
		Client: client,
		Name:   dbName,
	}

	if err := p.initTable(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ClickHousePersister) initTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			user_id String,
			total_games UInt64,
			cumulative_score UInt64,
			best_score UInt64,
			cumulative_time_ms UInt64,
			highest_level UInt32,
			combo_max UInt32,
			favorite_operator LowCardinality(String),
			last_played DateTime64(3, 'UTC')
		) ENGINE = %s(total_games)
		ORDER BY user_id
	`, p.Name, AggregatesTableName, clickhouse.ReplacingMergeTree)

	if err := p.Db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", AggregatesTableName, err)
	}
	return nil
}

// LoadRow returns the persisted row for a user, or nil when none exists.
func (p *ClickHousePersister) LoadRow(ctx context.Context, userID string) (*telemetry.AggregateRow, error) {
	query := fmt.Sprintf(`
		SELECT
			user_id, total_games, cumulative_score, best_score,
			cumulative_time_ms, highest_level, combo_max,
			favorite_operator, last_played
		FROM "%s"."%s" FINAL
		WHERE user_id = ?
		LIMIT 1
	`, p.Name, AggregatesTableName)

	rows, err := p.Db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("load aggregate row: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var row telemetry.AggregateRow
	var operator string
	if err := rows.Scan(
		&row.UserID,
		&row.TotalGames,
		&row.CumulativeScore,
		&row.BestScore,
		&row.CumulativeTimeMs,
		&row.HighestLevel,
		&row.ComboMax,
		&operator,
		&row.LastPlayed,
	); err != nil {
		return nil, fmt.Errorf("scan aggregate row: %w", err)
	}
	row.FavoriteOperator = telemetry.Operator(operator)
	return &row, nil
}

// SaveRow upserts the row. ReplacingMergeTree keeps the highest version.
func (p *ClickHousePersister) SaveRow(ctx context.Context, row telemetry.AggregateRow) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (
		user_id, total_games, cumulative_score, best_score,
		cumulative_time_ms, highest_level, combo_max,
		favorite_operator, last_played
	) VALUES`, p.Name, AggregatesTableName)

	batch, err := p.Db.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("save aggregate row: %w", err)
	}

	if err := batch.Append(
		row.UserID,
		row.TotalGames,
		row.CumulativeScore,
		row.BestScore,
		row.CumulativeTimeMs,
		row.HighestLevel,
		row.ComboMax,
		string(row.FavoriteOperator),
		row.LastPlayed,
	); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("save aggregate row: %w", err)
	}

	return batch.Send()
}

// Close terminates the underlying ClickHouse connection.
func (p *ClickHousePersister) Close() error {
	return p.Db.Close()
}
