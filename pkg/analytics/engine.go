package analytics

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/db"
	"github.com/cubematch/telemetry/pkg/telemetry"
	"github.com/cubematch/telemetry/pkg/utils"
)

// ErrTimedOut is returned when a snapshot computation exceeds its budget
// or the caller cancels. Analytics never blocks ingestion and never
// hangs a caller that has given up.
var ErrTimedOut = errors.New("analysis timed out")

const (
	DefaultWindowDays = 30
	MaxWindowDays     = 365

	queryPageSize = 500
)

// Engine computes analytics snapshots from the injected stores. Reads
// are point-in-time and run with arbitrary concurrency; the engine owns
// no mutable state.
type Engine struct {
	history    db.HistoryStore
	aggregates db.AggregateStore
	logger     *zap.Logger
	timeout    time.Duration
	now        func() time.Time
}

// NewEngine returns an Engine with the query timeout taken from
// ANALYTICS_TIMEOUT_MS (default 10s).
func NewEngine(history db.HistoryStore, aggregates db.AggregateStore, logger *zap.Logger) *Engine {
	return &Engine{
		history:    history,
		aggregates: aggregates,
		logger:     logger,
		timeout:    time.Duration(utils.EnvInt64("ANALYTICS_TIMEOUT_MS", 10000)) * time.Millisecond,
		now:        time.Now,
	}
}

// Snapshot derives the full analytics object for one user over the last
// windowDays days. A user with no rounds in the window yields an
// InsufficientDataError, never a zero-filled snapshot.
func (e *Engine) Snapshot(ctx context.Context, userID string, windowDays int) (*Snapshot, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if windowDays > MaxWindowDays {
		windowDays = MaxWindowDays
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	now := e.now().UTC()
	from := now.AddDate(0, 0, -windowDays)

	records, err := e.loadWindow(ctx, userID, from, now)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &InsufficientDataError{Metric: "analytics", Needed: 1, Got: 0}
	}

	row, _, err := e.aggregates.Get(ctx, userID)
	if err != nil {
		return nil, e.mapErr(err)
	}

	scores := make([]float64, len(records))
	var moveMs float64
	var totalMoves, failedMoves uint64
	for i, rec := range records {
		scores[i] = float64(rec.Score)
		moveMs += rec.Timing.AverageMs
		totalMoves += uint64(rec.Moves.Total)
		failedMoves += uint64(rec.Moves.Failed)
	}

	var errorRate float64
	if totalMoves > 0 {
		errorRate = float64(failedMoves) / float64(totalMoves) * 100
	}

	snap := &Snapshot{
		UserID:       userID,
		WindowDays:   windowDays,
		GeneratedAt:  now,
		Rounds:       len(records),
		Trend:        ComputeTrend(scores),
		Consistency:  Consistency(scores),
		Mastery:      ComputeMastery(records),
		Difficulty:   ComputeDifficultyFit(records),
		Peaks:        ComputeTemporalPeaks(records),
		AvgMoveMs:    moveMs / float64(len(records)),
		ErrorRatePct: errorRate,
		Aggregate:    row,
	}

	e.logger.Debug("Analytics snapshot computed",
		zap.String("user_id", userID),
		zap.Int("window_days", windowDays),
		zap.Int("rounds", len(records)),
		zap.String("trend", string(snap.Trend.Direction)))

	return snap, nil
}

// loadWindow pages through history, checking the context between pages
// so a cancelled or timed-out caller stops consuming compute promptly.
func (e *Engine) loadWindow(ctx context.Context, userID string, from, to time.Time) ([]telemetry.RoundRecord, error) {
	var out []telemetry.RoundRecord
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, e.mapErr(err)
		}

		page, next, err := e.history.Query(ctx, userID, from, to, cursor, queryPageSize)
		if err != nil {
			return nil, e.mapErr(err)
		}
		out = append(out, page...)

		if next == "" {
			return out, nil
		}
		cursor = next
	}
}

func (e *Engine) mapErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimedOut
	}
	return err
}
