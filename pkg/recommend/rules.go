// Package recommend turns an analytics snapshot into an ordered list of
// gameplay suggestions. Rules run in a fixed order and every matching
// rule emits, so the output is deterministic for a given snapshot.
package recommend

import (
	"fmt"

	"github.com/cubematch/telemetry/pkg/analytics"
	"github.com/cubematch/telemetry/pkg/telemetry"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Type string

const (
	TypeDifficultyDown Type = "difficulty_down"
	TypeDifficultyUp   Type = "difficulty_up"
	TypeOperatorFocus  Type = "operator_focus"
	TypeSpeedDrill     Type = "speed_drill"
	TypeAccuracyPacing Type = "accuracy_pacing"
)

// Recommendation is an ephemeral, non-persisted suggestion.
type Recommendation struct {
	Type     Type                `json:"type"`
	Operator *telemetry.Operator `json:"operator,omitempty"`
	Reason   string              `json:"reason"`
	Priority Priority            `json:"priority"`
}

// Rule thresholds, fixed coaching policy.
const (
	lowMasteryThreshold = 30
	slowMoveMs          = 3000
	fastMoveMs          = 1000
	highErrorRatePct    = 20
)

// Generate evaluates the rule set against a snapshot. Rules 4 and 5 are
// mutually exclusive by construction: one requires a slow average move
// and the other a fast one.
func Generate(snap *analytics.Snapshot) []Recommendation {
	var out []Recommendation

	// 1. Declining trend: back off before frustration sets in.
	if snap.Trend.Direction == analytics.TrendDeclining {
		out = append(out, Recommendation{
			Type:     TypeDifficultyDown,
			Reason:   fmt.Sprintf("scores dropped %.0f%% across this window; reduce difficulty or take a break", -snap.Trend.ImprovementPct),
			Priority: PriorityHigh,
		})
	}

	// 2. Improving trend: room to push harder.
	if snap.Trend.Direction == analytics.TrendImproving {
		out = append(out, Recommendation{
			Type:     TypeDifficultyUp,
			Reason:   fmt.Sprintf("scores improved %.0f%% across this window; maintain or raise difficulty", snap.Trend.ImprovementPct),
			Priority: PriorityMedium,
		})
	}

	// 3. Weakest operator gets focused training.
	if weakest, ok := lowestMastery(snap.Mastery); ok {
		priority := PriorityMedium
		if weakest.Score < lowMasteryThreshold {
			priority = PriorityHigh
		}
		op := weakest.Operator
		reason := fmt.Sprintf("%s is your weakest operator (mastery %.0f); focus training on it", op, weakest.Score)
		if !weakest.Attempted {
			reason = fmt.Sprintf("%s has not been attempted yet; try a few rounds with it", op)
		}
		out = append(out, Recommendation{
			Type:     TypeOperatorFocus,
			Operator: &op,
			Reason:   reason,
			Priority: priority,
		})
	}

	// 4. Slow mover: speed drills.
	if snap.AvgMoveMs > slowMoveMs {
		out = append(out, Recommendation{
			Type:     TypeSpeedDrill,
			Reason:   fmt.Sprintf("average move takes %.0fms; try timed speed drills", snap.AvgMoveMs),
			Priority: PriorityMedium,
		})
	}

	// 5. Fast but sloppy: slow down.
	if snap.AvgMoveMs < fastMoveMs && snap.ErrorRatePct > highErrorRatePct {
		out = append(out, Recommendation{
			Type:     TypeAccuracyPacing,
			Reason:   fmt.Sprintf("%.0f%% of moves fail at a %.0fms pace; slow down for accuracy", snap.ErrorRatePct, snap.AvgMoveMs),
			Priority: PriorityMedium,
		})
	}

	return out
}

// lowestMastery picks the operator with the lowest mastery score. Equal
// scores resolve in canonical operator order (ADD > SUB > MUL > DIV
// preference), arbitrary but fixed so results are reproducible.
func lowestMastery(mastery []analytics.OperatorMastery) (analytics.OperatorMastery, bool) {
	if len(mastery) == 0 {
		return analytics.OperatorMastery{}, false
	}

	byOp := make(map[telemetry.Operator]analytics.OperatorMastery, len(mastery))
	for _, m := range mastery {
		byOp[m.Operator] = m
	}

	var best analytics.OperatorMastery
	found := false
	for _, op := range telemetry.Operators {
		m, ok := byOp[op]
		if !ok {
			continue
		}
		if !found || m.Score < best.Score {
			best = m
			found = true
		}
	}
	return best, found
}
