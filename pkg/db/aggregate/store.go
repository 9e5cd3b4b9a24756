// Package aggregate implements the per-user rolling summary store.
//
// Each user owns one slot guarded by its own mutex; slots live in an
// xsync map so applies for distinct users proceed fully in parallel
// while applies for one user are strictly serialized. There is no
// global lock anywhere on the apply path.
package aggregate

import (
	"context"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/retry"
	"github.com/cubematch/telemetry/pkg/telemetry"
)

// Persister is the durable backing of the aggregate arena. LoadRow
// returns nil for an unknown user. SaveRow must be an upsert keyed by
// user id.
type Persister interface {
	LoadRow(ctx context.Context, userID string) (*telemetry.AggregateRow, error)
	SaveRow(ctx context.Context, row telemetry.AggregateRow) error
	Close() error
}

type userSlot struct {
	mu       sync.Mutex
	hydrated bool
	row      telemetry.AggregateRow
}

// Store implements db.AggregateStore.
type Store struct {
	logger    *zap.Logger
	persister Persister
	slots     *xsync.Map[string, *userSlot]
	retryCfg  retry.Config
}

// New returns a Store over the given persister.
func New(logger *zap.Logger, persister Persister) *Store {
	return &Store{
		logger:    logger,
		persister: persister,
		slots:     xsync.NewMap[string, *userSlot](),
		retryCfg:  retry.DefaultConfig(),
	}
}

func (s *Store) slot(userID string) *userSlot {
	if slot, ok := s.slots.Load(userID); ok {
		return slot
	}
	slot, _ := s.slots.LoadOrStore(userID, &userSlot{})
	return slot
}

// Apply folds one validated record into the user's row and persists the
// result. The delta lands in full or not at all: the in-memory row is
// only advanced after the durable write succeeds.
func (s *Store) Apply(ctx context.Context, rec *telemetry.RoundRecord) (telemetry.AggregateRow, error) {
	slot := s.slot(rec.UserID)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if err := s.hydrateLocked(ctx, rec.UserID, slot); err != nil {
		return telemetry.AggregateRow{}, err
	}

	next, err := applyDelta(slot.row, rec)
	if err != nil {
		s.logger.Error("Rejected aggregate update",
			zap.String("user_id", rec.UserID),
			zap.String("record_id", rec.ID),
			zap.Error(err))
		return telemetry.AggregateRow{}, err
	}

	saveErr := retry.WithBackoff(ctx, s.retryCfg, s.logger, "aggregate_save", func() error {
		return s.persister.SaveRow(ctx, next)
	})
	if saveErr != nil {
		return telemetry.AggregateRow{}, &telemetry.TransientError{Op: "aggregate save", Err: saveErr}
	}

	slot.row = next
	return next, nil
}

// Get returns the current row for a user, hydrating from the persister
// on first access.
func (s *Store) Get(ctx context.Context, userID string) (telemetry.AggregateRow, bool, error) {
	slot := s.slot(userID)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if err := s.hydrateLocked(ctx, userID, slot); err != nil {
		return telemetry.AggregateRow{}, false, err
	}
	if slot.row.TotalGames == 0 {
		return telemetry.AggregateRow{}, false, nil
	}
	return slot.row, true, nil
}

// Close releases the persister.
func (s *Store) Close() error {
	return s.persister.Close()
}

// hydrateLocked loads the persisted row into an empty slot. Caller holds slot.mu.
func (s *Store) hydrateLocked(ctx context.Context, userID string, slot *userSlot) error {
	if slot.hydrated {
		return nil
	}

	row, err := s.persister.LoadRow(ctx, userID)
	if err != nil {
		return &telemetry.TransientError{Op: "aggregate load", Err: err}
	}
	if row != nil {
		slot.row = *row
	} else {
		slot.row = telemetry.AggregateRow{UserID: userID}
	}
	slot.hydrated = true
	return nil
}

// applyDelta produces the next row from the current one. It also guards
// the monotonicity invariants: a computed decrease means corrupted state
// and is rejected, never silently fixed.
func applyDelta(cur telemetry.AggregateRow, rec *telemetry.RoundRecord) (telemetry.AggregateRow, error) {
	next := cur
	next.UserID = rec.UserID
	next.TotalGames = cur.TotalGames + 1
	next.CumulativeScore = cur.CumulativeScore + rec.Score
	next.CumulativeTimeMs = cur.CumulativeTimeMs + rec.ElapsedMs
	if rec.Score > next.BestScore {
		next.BestScore = rec.Score
	}
	if rec.Level > next.HighestLevel {
		next.HighestLevel = rec.Level
	}
	if rec.ComboMax > next.ComboMax {
		next.ComboMax = rec.ComboMax
	}
	// Favorite operator is last-write-wins: the most recent round
	// defines it.
	next.FavoriteOperator = rec.Operator
	next.LastPlayed = rec.Timestamp

	if next.BestScore < cur.BestScore {
		return telemetry.AggregateRow{}, &telemetry.InvariantViolation{
			UserID: rec.UserID,
			Detail: fmt.Sprintf("best_score would decrease from %d to %d", cur.BestScore, next.BestScore),
		}
	}
	if next.CumulativeScore < cur.CumulativeScore || next.CumulativeTimeMs < cur.CumulativeTimeMs {
		return telemetry.AggregateRow{}, &telemetry.InvariantViolation{
			UserID: rec.UserID,
			Detail: "cumulative counter overflow",
		}
	}
	return next, nil
}
