// Package db defines the repository contracts the engine is wired
// against. Stores are injected by the composition root; nothing in the
// engine reaches for ambient global state.
package db

import (
	"context"
	"time"

	"github.com/cubematch/telemetry/pkg/telemetry"
)

// HistoryStore is the append-only round log. Records are immutable once
// appended; the only delete path is the administrative retention purge.
type HistoryStore interface {
	// Append stores one validated record and returns its identifier.
	Append(ctx context.Context, rec *telemetry.RoundRecord) (string, error)
	// AppendBatch stores several validated records in one write.
	AppendBatch(ctx context.Context, recs []*telemetry.RoundRecord) error
	// Query returns a user's records within [from, to], ascending by
	// timestamp. A non-empty cursor resumes after the record it names;
	// the returned cursor is empty when the window is exhausted.
	Query(ctx context.Context, userID string, from, to time.Time, cursor string, limit int) ([]telemetry.RoundRecord, string, error)
	// PurgeBefore removes all records older than cutoff. Administrative;
	// in-window query correctness is unaffected.
	PurgeBefore(ctx context.Context, cutoff time.Time) error
	Close() error
}

// AggregateStore holds one rolling-summary row per user. Apply is atomic
// per user: concurrent applies for the same user never interleave.
type AggregateStore interface {
	Apply(ctx context.Context, rec *telemetry.RoundRecord) (telemetry.AggregateRow, error)
	// Get returns the current row, or found=false for an unknown user.
	Get(ctx context.Context, userID string) (row telemetry.AggregateRow, found bool, err error)
	Close() error
}
