package analytics

import "math"

// Consistency maps the coefficient of variation of the score sequence to
// a 0-100 scale: 100 - min(100, CoV*100). Fewer than two points, or zero
// variance, yields 100 since no inconsistency is observable.
func Consistency(scores []float64) float64 {
	if len(scores) < 2 {
		return 100
	}

	m := mean(scores)
	if m == 0 {
		// Scores are non-negative, so a zero mean means all zeros.
		return 100
	}

	var ss float64
	for _, x := range scores {
		d := x - m
		ss += d * d
	}
	stddev := math.Sqrt(ss / float64(len(scores)))

	cov := stddev / m
	return 100 - math.Min(100, cov*100)
}
