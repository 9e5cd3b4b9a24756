package analytics

// Thresholds for trend classification: more than +10% improvement of the
// second-half mean over the first-half mean is improving, below -10% is
// declining, anything between is stable.
const (
	trendMinPoints    = 3
	trendThresholdPct = 10.0
)

// ComputeTrend splits the ordered score sequence in half and compares
// the half means. Fewer than three points yields TrendUnknown, not an error.
func ComputeTrend(scores []float64) Trend {
	n := len(scores)
	if n < trendMinPoints {
		return Trend{Direction: TrendUnknown, SampleSize: n}
	}

	firstMean := mean(scores[:n/2])
	secondMean := mean(scores[n/2:])

	var pct float64
	switch {
	case firstMean != 0:
		pct = (secondMean - firstMean) / firstMean * 100
	case secondMean > 0:
		// Zero baseline with any second-half scoring counts as improvement.
		pct = 100
	}

	direction := TrendStable
	if pct > trendThresholdPct {
		direction = TrendImproving
	} else if pct < -trendThresholdPct {
		direction = TrendDeclining
	}

	return Trend{
		Direction:      direction,
		ImprovementPct: pct,
		SampleSize:     n,
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
