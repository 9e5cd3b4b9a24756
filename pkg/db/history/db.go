// Package history implements the append-only round log on ClickHouse.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/db/clickhouse"
	"github.com/cubematch/telemetry/pkg/telemetry"
	"github.com/cubematch/telemetry/pkg/utils"
)

const RoundsTableName = "rounds"

// DB stores round records in a MergeTree table ordered by (user_id, ts, id)
// so per-user time-range scans read a contiguous key range. It implements
// db.HistoryStore.
type DB struct {
	clickhouse.Client
	Name string
}

// New connects to the telemetry database and ensures the rounds table exists.
func New(ctx context.Context, logger *zap.Logger) (*DB, error) {
	dbName := clickhouse.SanitizeName(utils.Env("TELEMETRY_DB", "cubematch_telemetry"))

	client, err := clickhouse.New(ctx, logger.With(
		zap.String("db", dbName),
		zap.String("component", "history"),
	), dbName)
	if err != nil {
		return nil, err
	}

	h := &DB{
		Client: client,
		Name:   dbName,
	}

	if err := h.initRounds(ctx); err != nil {
		return nil, err
	}

	return h, nil
}

func (db *DB) initRounds(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			id String,
			user_id String,
			ts DateTime64(3, 'UTC'),
			score UInt64,
			level UInt32,
			elapsed_ms UInt64,
			operator LowCardinality(String),
			target Int64,
			difficulty LowCardinality(String),
			moves_total UInt32,
			moves_successful UInt32,
			moves_failed UInt32,
			accuracy Float64,
			fastest_ms Float64,
			slowest_ms Float64,
			average_ms Float64,
			combo_max UInt32,
			longest_chain UInt32,
			engagement Float64,
			focus_pct Float64,
			hints_used UInt32,
			add_count UInt32,
			add_score UInt64,
			sub_count UInt32,
			sub_score UInt64,
			mul_count UInt32,
			mul_score UInt64,
			div_count UInt32,
			div_score UInt64
		) ENGINE = %s
		ORDER BY (user_id, ts, id)
	`, db.Name, RoundsTableName, clickhouse.MergeTree)

	if err := db.Db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", RoundsTableName, err)
	}
	return nil
}

// Append stores one record and returns its identifier.
func (db *DB) Append(ctx context.Context, rec *telemetry.RoundRecord) (string, error) {
	if err := db.AppendBatch(ctx, []*telemetry.RoundRecord{rec}); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// AppendBatch stores several records in one insert. A failure is wrapped
// as transient: nothing has landed and the whole batch may be retried.
func (db *DB) AppendBatch(ctx context.Context, recs []*telemetry.RoundRecord) error {
	if len(recs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (
		id, user_id, ts, score, level, elapsed_ms, operator, target, difficulty,
		moves_total, moves_successful, moves_failed, accuracy,
		fastest_ms, slowest_ms, average_ms, combo_max, longest_chain,
		engagement, focus_pct, hints_used,
		add_count, add_score, sub_count, sub_score,
		mul_count, mul_score, div_count, div_score
	) VALUES`, db.Name, RoundsTableName)

	batch, err := db.Db.PrepareBatch(ctx, query)
	if err != nil {
		return &telemetry.TransientError{Op: "history append", Err: err}
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, rec := range recs {
		err = batch.Append(
			rec.ID,
			rec.UserID,
			rec.Timestamp,
			rec.Score,
			rec.Level,
			rec.ElapsedMs,
			string(rec.Operator),
			rec.Target,
			string(rec.Difficulty),
			rec.Moves.Total,
			rec.Moves.Successful,
			rec.Moves.Failed,
			rec.Accuracy,
			rec.Timing.FastestMs,
			rec.Timing.SlowestMs,
			rec.Timing.AverageMs,
			rec.ComboMax,
			rec.Chain,
			rec.Engagement.Engagement,
			rec.Engagement.FocusTimePct,
			rec.HintsUsed,
			rec.Breakdown.Add.Count,
			rec.Breakdown.Add.Score,
			rec.Breakdown.Sub.Count,
			rec.Breakdown.Sub.Score,
			rec.Breakdown.Mul.Count,
			rec.Breakdown.Mul.Score,
			rec.Breakdown.Div.Count,
			rec.Breakdown.Div.Score,
		)
		if err != nil {
			return &telemetry.TransientError{Op: "history append", Err: err}
		}
	}

	if err := batch.Send(); err != nil {
		return &telemetry.TransientError{Op: "history append", Err: err}
	}
	return nil
}

// Query returns a user's records within [from, to] ascending by timestamp.
// Record ids are monotonic ULIDs, so the id of the last returned row
// doubles as the pagination cursor.
func (db *DB) Query(ctx context.Context, userID string, from, to time.Time, cursor string, limit int) ([]telemetry.RoundRecord, string, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	query := fmt.Sprintf(`
		SELECT
			id, user_id, ts, score, level, elapsed_ms, operator, target, difficulty,
			moves_total, moves_successful, moves_failed, accuracy,
			fastest_ms, slowest_ms, average_ms, combo_max, longest_chain,
			engagement, focus_pct, hints_used,
			add_count, add_score, sub_count, sub_score,
			mul_count, mul_score, div_count, div_score
		FROM "%s"."%s"
		WHERE user_id = ? AND ts >= ? AND ts <= ? AND id > ?
		ORDER BY ts ASC, id ASC
		LIMIT ?
	`, db.Name, RoundsTableName)

	rows, err := db.Db.Query(ctx, query, userID, from, to, cursor, limit)
	if err != nil {
		return nil, "", &telemetry.TransientError{Op: "history query", Err: err}
	}
	defer rows.Close()

	var out []telemetry.RoundRecord
	for rows.Next() {
		var rec telemetry.RoundRecord
		var operator, difficulty string
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Timestamp,
			&rec.Score,
			&rec.Level,
			&rec.ElapsedMs,
			&operator,
			&rec.Target,
			&difficulty,
			&rec.Moves.Total,
			&rec.Moves.Successful,
			&rec.Moves.Failed,
			&rec.Accuracy,
			&rec.Timing.FastestMs,
			&rec.Timing.SlowestMs,
			&rec.Timing.AverageMs,
			&rec.ComboMax,
			&rec.Chain,
			&rec.Engagement.Engagement,
			&rec.Engagement.FocusTimePct,
			&rec.HintsUsed,
			&rec.Breakdown.Add.Count,
			&rec.Breakdown.Add.Score,
			&rec.Breakdown.Sub.Count,
			&rec.Breakdown.Sub.Score,
			&rec.Breakdown.Mul.Count,
			&rec.Breakdown.Mul.Score,
			&rec.Breakdown.Div.Count,
			&rec.Breakdown.Div.Score,
		); err != nil {
			return nil, "", fmt.Errorf("scan round row: %w", err)
		}
		rec.Operator = telemetry.Operator(operator)
		rec.Difficulty = telemetry.Difficulty(difficulty)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", &telemetry.TransientError{Op: "history query", Err: err}
	}

	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

// PurgeBefore removes all records older than cutoff via a lightweight delete.
func (db *DB) PurgeBefore(ctx context.Context, cutoff time.Time) error {
	query := fmt.Sprintf(`DELETE FROM "%s"."%s" WHERE ts < ?`, db.Name, RoundsTableName)
	if err := db.Db.Exec(ctx, query, cutoff); err != nil {
		return fmt.Errorf("purge rounds before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	db.Logger.Info("History retention purge completed",
		zap.Time("cutoff", cutoff))
	return nil
}

// Close terminates the underlying ClickHouse connection.
func (db *DB) Close() error {
	return db.Db.Close()
}
