package analytics

import "github.com/cubematch/telemetry/pkg/telemetry"

// Zone thresholds, fixed calibration policy.
const (
	zoneMasteryScore      = 800
	zoneMasteryAccuracy   = 85
	zoneMasteryMoveMs     = 1500
	zoneChallengeScore    = 600
	zoneChallengeEngage   = 70
	zoneFrustrationScore  = 300
	zoneFrustrationAccPct = 50
)

// ClassifyZone buckets one round into mastery, challenge, frustration or
// comfort. Rules are checked in that order; the first match wins.
func ClassifyZone(rec telemetry.RoundRecord) Zone {
	switch {
	case rec.Score > zoneMasteryScore && rec.Accuracy > zoneMasteryAccuracy && rec.Timing.AverageMs < zoneMasteryMoveMs:
		return ZoneMastery
	case rec.Score > zoneChallengeScore && rec.Engagement.Engagement > zoneChallengeEngage:
		return ZoneChallenge
	case rec.Score < zoneFrustrationScore || rec.Accuracy < zoneFrustrationAccPct:
		return ZoneFrustration
	default:
		return ZoneComfort
	}
}

// ComputeDifficultyFit classifies every round and scores each difficulty
// bracket by engagement*0.4 + accuracy*0.3 + trend bonus*0.3. The trend
// bonus comes from that bracket's own score progression: improving 100,
// stable 50, declining 0.
func ComputeDifficultyFit(records []telemetry.RoundRecord) DifficultyFit {
	fit := DifficultyFit{
		ZoneCounts: make(map[Zone]int),
		Weights:    make(map[telemetry.Difficulty]float64),
	}

	byDifficulty := make(map[telemetry.Difficulty][]telemetry.RoundRecord)
	for _, rec := range records {
		fit.ZoneCounts[ClassifyZone(rec)]++
		byDifficulty[rec.Difficulty] = append(byDifficulty[rec.Difficulty], rec)
	}

	best := -1.0
	for _, d := range telemetry.Difficulties {
		recs := byDifficulty[d]
		if len(recs) == 0 {
			continue
		}

		var engagement, accuracy float64
		scores := make([]float64, 0, len(recs))
		for _, rec := range recs {
			engagement += rec.Engagement.Engagement
			accuracy += rec.Accuracy
			scores = append(scores, float64(rec.Score))
		}
		engagement /= float64(len(recs))
		accuracy /= float64(len(recs))

		bonus := 50.0
		switch ComputeTrend(scores).Direction {
		case TrendImproving:
			bonus = 100
		case TrendDeclining:
			bonus = 0
		}

		weight := engagement*0.4 + accuracy*0.3 + bonus*0.3
		fit.Weights[d] = weight

		// Ties keep the easier bracket: Difficulties is ordered ascending
		// and only a strictly higher weight replaces the pick.
		if weight > best {
			best = weight
			fit.Recommended = d
		}
	}

	return fit
}
