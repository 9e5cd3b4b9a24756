// Package analytics derives statistical insights from a bounded window
// of round history plus the current aggregate row. Every function here
// is pure and deterministic: identical inputs always produce identical
// outputs, with no hidden state and no randomness.
package analytics

import (
	"fmt"
	"time"

	"github.com/cubematch/telemetry/pkg/telemetry"
)

// InsufficientDataError is the defined, non-error outcome of a metric
// whose data window has too few points. Callers render a friendly empty
// state instead of a zero-filled object.
type InsufficientDataError struct {
	Metric string
	Needed int
	Got    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need %d points, have %d", e.Metric, e.Needed, e.Got)
}

// TrendDirection classifies a score progression.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
	// TrendUnknown marks a window below the three-point minimum.
	TrendUnknown TrendDirection = "insufficient_data"
)

// Trend is the half-split progression of the score sequence.
type Trend struct {
	Direction      TrendDirection `json:"direction"`
	ImprovementPct float64        `json:"improvementPct"`
	SampleSize     int            `json:"sampleSize"`
}

// OperatorMastery is a composite 0-100 skill estimate for one operator.
// Attempted is false (and Score zero) for operators with no recorded games.
type OperatorMastery struct {
	Operator  telemetry.Operator `json:"operator"`
	Attempted bool               `json:"attempted"`
	Score     float64            `json:"score"`
	Games     int                `json:"games"`
	AvgScore  float64            `json:"avgScore"`
	Accuracy  float64            `json:"accuracy"`
	AvgMoveMs float64            `json:"avgMoveMs"`
}

// Zone classifies one round by score, accuracy and engagement.
type Zone string

const (
	ZoneMastery     Zone = "mastery"
	ZoneChallenge   Zone = "challenge"
	ZoneFrustration Zone = "frustration"
	ZoneComfort     Zone = "comfort"
)

// DifficultyFit summarizes zone distribution and recommends the bracket
// with the highest weighted engagement/accuracy/trend score.
type DifficultyFit struct {
	ZoneCounts  map[Zone]int                     `json:"zoneCounts"`
	Weights     map[telemetry.Difficulty]float64 `json:"weights"`
	Recommended telemetry.Difficulty             `json:"recommended"`
}

// TemporalPeaks reports the hour-of-day and day-of-week buckets with the
// highest mean score. Available is false below the five-record minimum.
type TemporalPeaks struct {
	Available   bool         `json:"available"`
	PeakHour    int          `json:"peakHour"`
	PeakHourAvg float64      `json:"peakHourAvgScore"`
	PeakDay     time.Weekday `json:"peakDay"`
	PeakDayAvg  float64      `json:"peakDayAvgScore"`
	SampleSize  int          `json:"sampleSize"`
}

// Snapshot is the full derived analytics object for one user and window.
// It is recomputable from its inputs and never persisted.
type Snapshot struct {
	UserID      string    `json:"userId"`
	WindowDays  int       `json:"windowDays"`
	GeneratedAt time.Time `json:"generatedAt"`
	Rounds      int       `json:"rounds"`

	Trend       Trend             `json:"trend"`
	Consistency float64           `json:"consistency"`
	Mastery     []OperatorMastery `json:"mastery"`
	Difficulty  DifficultyFit     `json:"difficulty"`
	Peaks       TemporalPeaks     `json:"temporalPeaks"`

	AvgMoveMs    float64 `json:"avgMoveMs"`
	ErrorRatePct float64 `json:"errorRatePct"`

	Aggregate telemetry.AggregateRow `json:"aggregate"`
}
