// Package ingest composes validation, durable history, aggregate
// application, and the live leaderboard/feed fan-out into the single
// write path every accepted round travels.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/db"
	"github.com/cubematch/telemetry/pkg/redis"
	"github.com/cubematch/telemetry/pkg/retry"
	"github.com/cubematch/telemetry/pkg/telemetry"
	"github.com/cubematch/telemetry/pkg/utils"
)

// MaxBatchSize caps a single batch submission.
const MaxBatchSize = 100

// Result reports the outcome for one candidate in a batch, keyed by its
// position in the submitted slice.
type Result struct {
	Index    int    `json:"index"`
	RecordID string `json:"recordId,omitempty"`
	Err      error  `json:"-"`
}

// Pipeline is the ingestion write path. The board client is optional;
// when nil, leaderboard updates and the live feed are skipped.
type Pipeline struct {
	logger     *zap.Logger
	validator  *telemetry.Validator
	history    db.HistoryStore
	aggregates db.AggregateStore
	board      *redis.Client
	pool       pond.Pool
	retryCfg   retry.Config
}

func New(logger *zap.Logger, validator *telemetry.Validator, history db.HistoryStore, aggregates db.AggregateStore, board *redis.Client) *Pipeline {
	maxWorkers := utils.EnvInt("INGEST_WORKERS", 8)
	queueSize := utils.EnvInt("INGEST_QUEUE_SIZE", 256)

	return &Pipeline{
		logger:     logger.Named("ingest"),
		validator:  validator,
		history:    history,
		aggregates: aggregates,
		board:      board,
		pool:       pond.NewPool(maxWorkers, pond.WithQueueSize(queueSize)),
		retryCfg:   retry.DefaultConfig(),
	}
}

// Ingest runs one candidate through the full path: validate, append to
// history, fold into the user's aggregate, then update the leaderboard
// and live feed. The record is durable before the aggregate advances.
func (p *Pipeline) Ingest(ctx context.Context, userID string, c telemetry.CandidateRound) (*telemetry.RoundRecord, telemetry.AggregateRow, error) {
	rec, err := p.validator.Validate(userID, c)
	if err != nil {
		return nil, telemetry.AggregateRow{}, err
	}

	err = retry.WithBackoff(ctx, p.retryCfg, p.logger, "history append", func() error {
		_, appendErr := p.history.Append(ctx, rec)
		return appendErr
	})
	if err != nil {
		return nil, telemetry.AggregateRow{}, fmt.Errorf("appending round %s: %w", rec.ID, err)
	}

	row, err := p.aggregates.Apply(ctx, rec)
	if err != nil {
		return nil, telemetry.AggregateRow{}, fmt.Errorf("applying round %s: %w", rec.ID, err)
	}

	p.announce(ctx, rec)
	return rec, row, nil
}

// IngestMany processes up to MaxBatchSize candidates for one user.
// Validation runs in submission order so record timestamps follow the
// slice; history and aggregate writes then run as a worker group. Items
// fail independently and the slice of results always matches the input
// length.
func (p *Pipeline) IngestMany(ctx context.Context, userID string, candidates []telemetry.CandidateRound) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, &telemetry.ValidationError{Field: "rounds", Reason: "batch is empty"}
	}
	if len(candidates) > MaxBatchSize {
		return nil, &telemetry.ValidationError{Field: "rounds", Reason: fmt.Sprintf("batch exceeds %d items", MaxBatchSize)}
	}

	results := make([]Result, len(candidates))
	var accepted []*telemetry.RoundRecord
	var acceptedIdx []int

	for i, c := range candidates {
		rec, err := p.validator.Validate(userID, c)
		if err != nil {
			results[i] = Result{Index: i, Err: err}
			continue
		}
		results[i] = Result{Index: i, RecordID: rec.ID}
		accepted = append(accepted, rec)
		acceptedIdx = append(acceptedIdx, i)
	}

	if len(accepted) == 0 {
		return results, nil
	}

	// One pooled task per batch: concurrent batch submissions share the
	// bounded worker pool, while inside the task the history append is
	// durable before any aggregate advances. A failed append leaves the
	// aggregates untouched, so nothing counts rounds that never landed.
	group := p.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	var appendErr error
	applyErrs := make([]error, len(accepted))
	group.Submit(func() {
		if err := groupCtx.Err(); err != nil {
			appendErr = err
			return
		}
		appendErr = retry.WithBackoff(groupCtx, p.retryCfg, p.logger, "history append batch", func() error {
			return p.history.AppendBatch(groupCtx, accepted)
		})
		if appendErr != nil {
			return
		}

		// Applies stay sequential so the user's aggregate folds the
		// records in submission order.
		for i, rec := range accepted {
			if err := groupCtx.Err(); err != nil {
				applyErrs[i] = err
				continue
			}
			if _, err := p.aggregates.Apply(groupCtx, rec); err != nil {
				applyErrs[i] = err
			}
		}
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		p.logger.Warn("batch ingest group encountered error",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	for i, rec := range accepted {
		idx := acceptedIdx[i]
		switch {
		case appendErr != nil:
			results[idx] = Result{Index: idx, Err: fmt.Errorf("appending round %s: %w", rec.ID, appendErr)}
		case applyErrs[i] != nil:
			results[idx] = Result{Index: idx, Err: fmt.Errorf("applying round %s: %w", rec.ID, applyErrs[i])}
		default:
			p.announce(ctx, rec)
		}
	}

	return results, nil
}

// announce pushes the accepted record to the leaderboard sorted sets
// and the live-feed channel. Best-effort: publish failures never fail
// an ingest that already landed durably.
func (p *Pipeline) announce(ctx context.Context, rec *telemetry.RoundRecord) {
	if p.board == nil {
		return
	}
	p.board.RecordScore(ctx, rec.UserID, rec.Score)

	payload, err := json.Marshal(rec)
	if err != nil {
		p.logger.Warn("failed to encode round for live feed",
			zap.String("record_id", rec.ID),
			zap.Error(err))
		return
	}
	p.board.Publish(ctx, redis.RoundsChannel, payload)
}

// Close drains the worker pool. Stores are owned by the composition
// root and closed there.
func (p *Pipeline) Close() {
	p.pool.StopAndWait()
}
