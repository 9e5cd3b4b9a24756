package telemetry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Validator checks and normalizes inbound rounds, then stamps them with
// a server-generated monotonic timestamp and a ULID record identifier.
// It is purely input-shaping: a rejected round touches no store.
type Validator struct {
	logger *zap.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	lastTS  time.Time

	now func() time.Time
}

// NewValidator returns a Validator using the wall clock.
func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{
		logger:  logger,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:     time.Now,
	}
}

// Validate rejects a malformed candidate with a ValidationError, or
// returns the normalized immutable RoundRecord. The userID comes from
// the authenticated caller, never from record content.
func (v *Validator) Validate(userID string, c CandidateRound) (*RoundRecord, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if c.Score < 0 {
		return nil, &ValidationError{Field: "score", Reason: "must be non-negative"}
	}
	if c.Level < 1 {
		return nil, &ValidationError{Field: "level", Reason: "must be positive"}
	}
	if c.ElapsedMs < 0 {
		return nil, &ValidationError{Field: "elapsedMs", Reason: "must be non-negative"}
	}
	if !c.Operator.Valid() {
		return nil, &ValidationError{Field: "operator", Reason: "must be one of ADD, SUB, MUL, DIV, MIXED"}
	}
	// Summed in uint64: two counts near the uint32 ceiling must not
	// wrap past the check.
	if uint64(c.Moves.Successful)+uint64(c.Moves.Failed) > uint64(c.Moves.Total) {
		return nil, &ValidationError{Field: "moveCounters", Reason: "successful+failed exceeds total moves"}
	}
	if c.Accuracy < 0 || c.Accuracy > 100 {
		return nil, &ValidationError{Field: "accuracyRate", Reason: "must be within [0,100]"}
	}
	if c.Breakdown.TotalCount() > uint64(c.Moves.Total) {
		return nil, &ValidationError{Field: "perOperatorBreakdown", Reason: "sub-counts exceed total moves"}
	}

	// Unspecified difficulty defaults to MEDIUM; anything else outside
	// the enum is a caller error.
	difficulty := c.Difficulty
	if difficulty == "" {
		difficulty = DifficultyMedium
	} else if !difficulty.Valid() {
		return nil, &ValidationError{Field: "difficulty", Reason: "must be one of EASY, MEDIUM, HARD"}
	}

	var hints uint32
	if c.HintsUsed != nil {
		hints = *c.HintsUsed
	}

	ts, id := v.stamp()

	rec := &RoundRecord{
		ID:         id,
		UserID:     userID,
		Timestamp:  ts,
		Score:      uint64(c.Score),
		Level:      uint32(c.Level),
		ElapsedMs:  uint64(c.ElapsedMs),
		Operator:   c.Operator,
		Target:     c.Target,
		Difficulty: difficulty,
		Moves:      c.Moves,
		Accuracy:   c.Accuracy,
		Timing:     c.Timing,
		ComboMax:   c.ComboMax,
		Chain:      c.Chain,
		Engagement: EngagementMetrics{
			Engagement:   clampPct(c.Engagement.Engagement),
			FocusTimePct: clampPct(c.Engagement.FocusTimePct),
		},
		HintsUsed: hints,
		Breakdown: c.Breakdown,
	}

	v.logger.Debug("Round accepted",
		zap.String("record_id", rec.ID),
		zap.String("user_id", userID),
		zap.Uint64("score", rec.Score),
		zap.String("operator", string(rec.Operator)))

	return rec, nil
}

// stamp assigns a strictly increasing server timestamp and a monotonic
// ULID. Both are produced under one lock so record identifiers sort in
// timestamp order within this process.
func (v *Validator) stamp() (time.Time, string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ts := v.now().UTC()
	if !ts.After(v.lastTS) {
		ts = v.lastTS.Add(time.Microsecond)
	}
	v.lastTS = ts

	id := ulid.MustNew(ulid.Timestamp(ts), v.entropy).String()
	return ts, id
}

func clampPct(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
