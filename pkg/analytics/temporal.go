package analytics

import (
	"time"

	"github.com/cubematch/telemetry/pkg/telemetry"
)

// temporalMinRecords is the floor below which peak buckets are noise.
const temporalMinRecords = 5

// ComputeTemporalPeaks groups rounds by hour-of-day and day-of-week and
// reports the bucket with the highest mean score in each grouping.
// Below five records the result is marked unavailable rather than
// reporting a peak built on noise.
func ComputeTemporalPeaks(records []telemetry.RoundRecord) TemporalPeaks {
	peaks := TemporalPeaks{SampleSize: len(records)}
	if len(records) < temporalMinRecords {
		return peaks
	}

	type bucket struct {
		sum   float64
		count int
	}

	hours := make(map[int]*bucket)
	days := make(map[time.Weekday]*bucket)

	for _, rec := range records {
		ts := rec.Timestamp.UTC()

		h := ts.Hour()
		if hours[h] == nil {
			hours[h] = &bucket{}
		}
		hours[h].sum += float64(rec.Score)
		hours[h].count++

		d := ts.Weekday()
		if days[d] == nil {
			days[d] = &bucket{}
		}
		days[d].sum += float64(rec.Score)
		days[d].count++
	}

	peaks.Available = true

	bestHourAvg := -1.0
	for h := 0; h < 24; h++ {
		b := hours[h]
		if b == nil {
			continue
		}
		if avg := b.sum / float64(b.count); avg > bestHourAvg {
			bestHourAvg = avg
			peaks.PeakHour = h
			peaks.PeakHourAvg = avg
		}
	}

	bestDayAvg := -1.0
	for d := time.Sunday; d <= time.Saturday; d++ {
		b := days[d]
		if b == nil {
			continue
		}
		if avg := b.sum / float64(b.count); avg > bestDayAvg {
			bestDayAvg = avg
			peaks.PeakDay = d
			peaks.PeakDayAvg = avg
		}
	}

	return peaks
}
