// Package telemetry defines the round-record data model shared by the
// ingestion pipeline, the stores and the analytics engine.
package telemetry

import "time"

// Operator identifies the arithmetic operator a round was played with.
type Operator string

const (
	OperatorAdd   Operator = "ADD"
	OperatorSub   Operator = "SUB"
	OperatorMul   Operator = "MUL"
	OperatorDiv   Operator = "DIV"
	OperatorMixed Operator = "MIXED"
)

// Operators lists the four single-operator modes in their canonical
// tie-break order (ADD before SUB before MUL before DIV). The order is
// fixed policy, not derived logic.
var Operators = [4]Operator{OperatorAdd, OperatorSub, OperatorMul, OperatorDiv}

func (o Operator) Valid() bool {
	switch o {
	case OperatorAdd, OperatorSub, OperatorMul, OperatorDiv, OperatorMixed:
		return true
	}
	return false
}

// Difficulty is the bracket a round was played at.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Difficulties lists all brackets in ascending order.
var Difficulties = [3]Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// MoveCounters holds the per-round move tally. Successful+Failed may be
// less than Total when moves time out without an answer.
type MoveCounters struct {
	Total      uint32 `ch:"moves_total" json:"total"`
	Successful uint32 `ch:"moves_successful" json:"successful"`
	Failed     uint32 `ch:"moves_failed" json:"failed"`
}

// TimingStats holds per-move timing extremes in milliseconds.
type TimingStats struct {
	FastestMs float64 `ch:"fastest_ms" json:"fastestMs"`
	SlowestMs float64 `ch:"slowest_ms" json:"slowestMs"`
	AverageMs float64 `ch:"average_ms" json:"averageMs"`
}

// EngagementMetrics holds the 0-100 engagement signals reported by the client.
type EngagementMetrics struct {
	Engagement   float64 `ch:"engagement" json:"engagementScore"`
	FocusTimePct float64 `ch:"focus_pct" json:"focusTimePct"`
}

// OperatorTally is one operator's sub-count and sub-score within a round.
type OperatorTally struct {
	Count uint32 `json:"count"`
	Score uint64 `json:"score"`
}

// OperatorBreakdown carries the per-operator tallies of a round. In MIXED
// rounds every operator may contribute; in single-operator rounds only
// that operator's tally is populated.
type OperatorBreakdown struct {
	Add OperatorTally `json:"add"`
	Sub OperatorTally `json:"sub"`
	Mul OperatorTally `json:"mul"`
	Div OperatorTally `json:"div"`
}

// Tally returns the tally for one of the four single operators.
func (b OperatorBreakdown) Tally(op Operator) OperatorTally {
	switch op {
	case OperatorAdd:
		return b.Add
	case OperatorSub:
		return b.Sub
	case OperatorMul:
		return b.Mul
	case OperatorDiv:
		return b.Div
	}
	return OperatorTally{}
}

// TotalCount sums the four per-operator sub-counts. Widened so four
// uint32 counts near the ceiling cannot wrap the sum.
func (b OperatorBreakdown) TotalCount() uint64 {
	return uint64(b.Add.Count) + uint64(b.Sub.Count) + uint64(b.Mul.Count) + uint64(b.Div.Count)
}

// CandidateRound is one inbound, not yet validated round submission.
// Optional fields are pointers so absence is distinguishable from zero.
type CandidateRound struct {
	Score      int64             `json:"score"`
	Level      int32             `json:"level"`
	ElapsedMs  int64             `json:"elapsedMs"`
	Operator   Operator          `json:"operator"`
	Target     int64             `json:"target"`
	Difficulty Difficulty        `json:"difficulty"`
	Moves      MoveCounters      `json:"moveCounters"`
	Accuracy   float64           `json:"accuracyRate"`
	Timing     TimingStats       `json:"timingStats"`
	ComboMax   uint32            `json:"comboMax"`
	Chain      uint32            `json:"longestChain"`
	Engagement EngagementMetrics `json:"engagementMetrics"`
	HintsUsed  *uint32           `json:"hintsUsed,omitempty"`
	Breakdown  OperatorBreakdown `json:"perOperatorBreakdown"`
}

// RoundRecord is one validated, immutable round. It is created exactly
// once by the Validator and never mutated afterwards; retention cleanup
// is the only thing that ever removes it.
type RoundRecord struct {
	ID        string    `ch:"id" json:"id"`
	UserID    string    `ch:"user_id" json:"userId"`
	Timestamp time.Time `ch:"ts" json:"timestamp"`

	Score      uint64     `ch:"score" json:"score"`
	Level      uint32     `ch:"level" json:"level"`
	ElapsedMs  uint64     `ch:"elapsed_ms" json:"elapsedMs"`
	Operator   Operator   `ch:"operator" json:"operator"`
	Target     int64      `ch:"target" json:"target"`
	Difficulty Difficulty `ch:"difficulty" json:"difficulty"`

	Moves    MoveCounters `json:"moveCounters"`
	Accuracy float64      `ch:"accuracy" json:"accuracyRate"`
	Timing   TimingStats  `json:"timingStats"`

	ComboMax uint32 `ch:"combo_max" json:"comboMax"`
	Chain    uint32 `ch:"longest_chain" json:"longestChain"`

	Engagement EngagementMetrics `json:"engagementMetrics"`
	HintsUsed  uint32            `ch:"hints_used" json:"hintsUsed"`
	Breakdown  OperatorBreakdown `json:"perOperatorBreakdown"`
}

// AggregateRow is the always-current rolling summary of one user's
// lifetime performance. Cumulative fields are wide integers so millions
// of rounds cannot overflow or drift.
type AggregateRow struct {
	UserID           string    `ch:"user_id" json:"userId"`
	TotalGames       uint64    `ch:"total_games" json:"totalGames"`
	CumulativeScore  uint64    `ch:"cumulative_score" json:"cumulativeScore"`
	BestScore        uint64    `ch:"best_score" json:"bestScore"`
	CumulativeTimeMs uint64    `ch:"cumulative_time_ms" json:"cumulativeTimeMs"`
	HighestLevel     uint32    `ch:"highest_level" json:"highestLevel"`
	ComboMax         uint32    `ch:"combo_max" json:"comboMax"`
	FavoriteOperator Operator  `ch:"favorite_operator" json:"favoriteOperator"`
	LastPlayed       time.Time `ch:"last_played" json:"lastPlayed"`
}

// AverageScore is computed at read time from the cumulative sum so the
// stored state never accumulates floating-point error.
func (a AggregateRow) AverageScore() float64 {
	if a.TotalGames == 0 {
		return 0
	}
	return float64(a.CumulativeScore) / float64(a.TotalGames)
}

// AverageSessionMs is the mean elapsed play time per round, computed on read.
func (a AggregateRow) AverageSessionMs() float64 {
	if a.TotalGames == 0 {
		return 0
	}
	return float64(a.CumulativeTimeMs) / float64(a.TotalGames)
}
