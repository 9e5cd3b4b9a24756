package achievements

import (
	"sort"
	"time"

	"github.com/cubematch/telemetry/pkg/telemetry"
)

// Progress reports one catalog entry's state for a user.
type Progress struct {
	Achievement
	Unlocked bool    `json:"unlocked"`
	Current  uint64  `json:"current"`
	Pct      float64 `json:"pct"`
}

// Evaluate returns the ids of every satisfied achievement, sorted.
// Idempotent by construction: nothing is recorded, only computed.
func Evaluate(row telemetry.AggregateRow, history []telemetry.RoundRecord) []string {
	var unlocked []string
	for _, a := range Catalog {
		if metricValue(a.Metric, row, history) >= a.Threshold {
			unlocked = append(unlocked, a.ID)
		}
	}
	sort.Strings(unlocked)
	return unlocked
}

// EvaluateProgress returns the full catalog with per-entry progress,
// in catalog order.
func EvaluateProgress(row telemetry.AggregateRow, history []telemetry.RoundRecord) []Progress {
	out := make([]Progress, 0, len(Catalog))
	for _, a := range Catalog {
		current := metricValue(a.Metric, row, history)

		pct := float64(100)
		if current < a.Threshold {
			pct = float64(current) / float64(a.Threshold) * 100
		}

		out = append(out, Progress{
			Achievement: a,
			Unlocked:    current >= a.Threshold,
			Current:     current,
			Pct:         pct,
		})
	}
	return out
}

func metricValue(m Metric, row telemetry.AggregateRow, history []telemetry.RoundRecord) uint64 {
	switch m {
	case MetricTotalGames:
		return row.TotalGames
	case MetricBestScore:
		return row.BestScore
	case MetricHighestLevel:
		return uint64(row.HighestLevel)
	case MetricComboMax:
		return uint64(row.ComboMax)
	case MetricCumulativeTime:
		return row.CumulativeTimeMs
	case MetricStreakDays:
		return longestDayStreak(history)
	}
	return 0
}

// longestDayStreak counts the longest run of consecutive UTC days with
// at least one round in the supplied history slice.
func longestDayStreak(history []telemetry.RoundRecord) uint64 {
	if len(history) == 0 {
		return 0
	}

	days := make(map[string]bool, len(history))
	var dates []time.Time
	for _, rec := range history {
		d := rec.Timestamp.UTC().Truncate(24 * time.Hour)
		key := d.Format("2006-01-02")
		if !days[key] {
			days[key] = true
			dates = append(dates, d)
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	best, run := uint64(1), uint64(1)
	for i := 1; i < len(dates); i++ {
		if dates[i].Sub(dates[i-1]) == 24*time.Hour {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 1
		}
	}
	return best
}
