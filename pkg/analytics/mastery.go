package analytics

import (
	"math"

	"github.com/cubematch/telemetry/pkg/telemetry"
)

// Mastery weighting: accuracy 30%, normalized score 30%, speed 20%,
// consistency 20%. Score normalizes against 1000 points per round and
// the speed bonus decays linearly from a 3000ms average move time.
const (
	masteryScoreCeiling = 1000.0
	masterySpeedFloorMs = 3000.0
)

// ComputeMastery estimates per-operator skill over the window. A round
// counts toward the operator it was played with; MIXED rounds count
// toward every operator their breakdown names. Operators with zero
// recorded games come back unattempted with a zero score, never a
// fabricated number.
func ComputeMastery(records []telemetry.RoundRecord) []OperatorMastery {
	out := make([]OperatorMastery, 0, len(telemetry.Operators))

	for _, op := range telemetry.Operators {
		var (
			scores    []float64
			accuracy  float64
			moveMs    float64
			moveCount int
		)

		for _, rec := range records {
			switch {
			case rec.Operator == op:
				scores = append(scores, float64(rec.Score))
				accuracy += rec.Accuracy
				moveMs += rec.Timing.AverageMs
				moveCount++
			case rec.Operator == telemetry.OperatorMixed:
				if tally := rec.Breakdown.Tally(op); tally.Count > 0 {
					scores = append(scores, float64(tally.Score))
					accuracy += rec.Accuracy
					moveMs += rec.Timing.AverageMs
					moveCount++
				}
			}
		}

		if len(scores) == 0 {
			out = append(out, OperatorMastery{Operator: op})
			continue
		}

		avgScore := mean(scores)
		avgAccuracy := accuracy / float64(moveCount)
		avgMoveMs := moveMs / float64(moveCount)

		normScore := math.Min(avgScore/masteryScoreCeiling, 1) * 100
		speedBonus := math.Max(0, (masterySpeedFloorMs-avgMoveMs)/masterySpeedFloorMs) * 100
		consistency := Consistency(scores)

		score := avgAccuracy*0.3 + normScore*0.3 + speedBonus*0.2 + consistency*0.2

		out = append(out, OperatorMastery{
			Operator:  op,
			Attempted: true,
			Score:     clamp100(score),
			Games:     len(scores),
			AvgScore:  avgScore,
			Accuracy:  avgAccuracy,
			AvgMoveMs: avgMoveMs,
		})
	}

	return out
}

func clamp100(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 100 {
		return 100
	}
	return x
}
