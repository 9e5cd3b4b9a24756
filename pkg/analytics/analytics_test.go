package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubematch/telemetry/pkg/analytics"
	"github.com/cubematch/telemetry/pkg/telemetry"
)

func round(score uint64, op telemetry.Operator, ts time.Time) telemetry.RoundRecord {
	return telemetry.RoundRecord{
		ID:        "r",
		UserID:    "u1",
		Timestamp: ts,
		Score:     score,
		Level:     3,
		Operator:  op,
		Accuracy:  80,
		Moves:     telemetry.MoveCounters{Total: 10, Successful: 8, Failed: 2},
		Timing:    telemetry.TimingStats{AverageMs: 2000},
		Engagement: telemetry.EngagementMetrics{
			Engagement: 75, FocusTimePct: 80,
		},
		Difficulty: telemetry.DifficultyMedium,
	}
}

func TestTrendClassificationIsSymmetric(t *testing.T) {
	up := analytics.ComputeTrend([]float64{100, 100, 100, 500, 500, 500})
	assert.Equal(t, analytics.TrendImproving, up.Direction)

	down := analytics.ComputeTrend([]float64{500, 500, 500, 100, 100, 100})
	assert.Equal(t, analytics.TrendDeclining, down.Direction)

	flat := analytics.ComputeTrend([]float64{300, 300, 300, 300, 300, 300})
	assert.Equal(t, analytics.TrendStable, flat.Direction)
}

func TestTrendRequiresThreePoints(t *testing.T) {
	tr := analytics.ComputeTrend([]float64{100, 900})
	assert.Equal(t, analytics.TrendUnknown, tr.Direction)
	assert.Equal(t, 2, tr.SampleSize)
}

func TestTrendZeroBaseline(t *testing.T) {
	tr := analytics.ComputeTrend([]float64{0, 0, 400, 500})
	assert.Equal(t, analytics.TrendImproving, tr.Direction)
}

func TestConsistencyBounds(t *testing.T) {
	cases := [][]float64{
		{500},
		{},
		{100, 900, 50, 700, 300},
		{300, 300, 300},
		{0, 0, 0},
		{1, 1000, 1, 1000, 1, 1000},
	}
	for _, scores := range cases {
		c := analytics.Consistency(scores)
		assert.GreaterOrEqual(t, c, float64(0))
		assert.LessOrEqual(t, c, float64(100))
	}

	assert.Equal(t, float64(100), analytics.Consistency([]float64{42}))
	assert.Equal(t, float64(100), analytics.Consistency([]float64{300, 300, 300}))
}

func TestMasteryScenario(t *testing.T) {
	now := time.Now().UTC()
	records := []telemetry.RoundRecord{
		round(200, telemetry.OperatorAdd, now),
		round(450, telemetry.OperatorAdd, now.Add(time.Minute)),
		round(900, telemetry.OperatorAdd, now.Add(2*time.Minute)),
	}

	mastery := analytics.ComputeMastery(records)
	require.Len(t, mastery, 4)

	byOp := make(map[telemetry.Operator]analytics.OperatorMastery)
	for _, m := range mastery {
		assert.GreaterOrEqual(t, m.Score, float64(0))
		assert.LessOrEqual(t, m.Score, float64(100))
		byOp[m.Operator] = m
	}

	add := byOp[telemetry.OperatorAdd]
	assert.True(t, add.Attempted)
	assert.Equal(t, 3, add.Games)
	assert.Greater(t, add.Score, float64(0))

	for _, op := range []telemetry.Operator{telemetry.OperatorSub, telemetry.OperatorMul, telemetry.OperatorDiv} {
		m := byOp[op]
		assert.False(t, m.Attempted, "%s has no recorded games", op)
		assert.Equal(t, float64(0), m.Score)
		assert.Greater(t, add.Score, m.Score)
	}
}

func TestMasteryCountsMixedBreakdown(t *testing.T) {
	rec := round(600, telemetry.OperatorMixed, time.Now().UTC())
	rec.Breakdown = telemetry.OperatorBreakdown{
		Add: telemetry.OperatorTally{Count: 5, Score: 400},
		Mul: telemetry.OperatorTally{Count: 5, Score: 200},
	}

	mastery := analytics.ComputeMastery([]telemetry.RoundRecord{rec})
	byOp := make(map[telemetry.Operator]analytics.OperatorMastery)
	for _, m := range mastery {
		byOp[m.Operator] = m
	}

	assert.True(t, byOp[telemetry.OperatorAdd].Attempted)
	assert.True(t, byOp[telemetry.OperatorMul].Attempted)
	assert.False(t, byOp[telemetry.OperatorSub].Attempted)
	assert.False(t, byOp[telemetry.OperatorDiv].Attempted)
}

func TestClassifyZone(t *testing.T) {
	now := time.Now().UTC()

	mastery := round(900, telemetry.OperatorAdd, now)
	mastery.Accuracy = 95
	mastery.Timing.AverageMs = 1000
	assert.Equal(t, analytics.ZoneMastery, analytics.ClassifyZone(mastery))

	challenge := round(700, telemetry.OperatorAdd, now)
	challenge.Engagement.Engagement = 85
	challenge.Timing.AverageMs = 2500
	assert.Equal(t, analytics.ZoneChallenge, analytics.ClassifyZone(challenge))

	frustration := round(100, telemetry.OperatorAdd, now)
	assert.Equal(t, analytics.ZoneFrustration, analytics.ClassifyZone(frustration))

	lowAccuracy := round(500, telemetry.OperatorAdd, now)
	lowAccuracy.Accuracy = 30
	assert.Equal(t, analytics.ZoneFrustration, analytics.ClassifyZone(lowAccuracy))

	comfort := round(500, telemetry.OperatorAdd, now)
	comfort.Engagement.Engagement = 50
	assert.Equal(t, analytics.ZoneComfort, analytics.ClassifyZone(comfort))
}

func TestDifficultyFitRecommends(t *testing.T) {
	now := time.Now().UTC()
	var records []telemetry.RoundRecord

	// Hard rounds: high engagement and rising scores.
	for i := 0; i < 4; i++ {
		rec := round(uint64(500+i*100), telemetry.OperatorAdd, now.Add(time.Duration(i)*time.Minute))
		rec.Difficulty = telemetry.DifficultyHard
		rec.Engagement.Engagement = 90
		records = append(records, rec)
	}
	// Easy rounds: flat and disengaged.
	for i := 0; i < 4; i++ {
		rec := round(400, telemetry.OperatorAdd, now.Add(time.Duration(10+i)*time.Minute))
		rec.Difficulty = telemetry.DifficultyEasy
		rec.Engagement.Engagement = 30
		records = append(records, rec)
	}

	fit := analytics.ComputeDifficultyFit(records)
	assert.Equal(t, telemetry.DifficultyHard, fit.Recommended)
	assert.Greater(t, fit.Weights[telemetry.DifficultyHard], fit.Weights[telemetry.DifficultyEasy])
	assert.NotEmpty(t, fit.ZoneCounts)
}

func TestTemporalPeaksRequireFiveRecords(t *testing.T) {
	now := time.Now().UTC()
	records := []telemetry.RoundRecord{
		round(100, telemetry.OperatorAdd, now),
		round(200, telemetry.OperatorAdd, now),
	}

	peaks := analytics.ComputeTemporalPeaks(records)
	assert.False(t, peaks.Available)
	assert.Equal(t, 2, peaks.SampleSize)
}

func TestTemporalPeaksFindHighestBucket(t *testing.T) {
	base := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC) // Monday 09:00
	evening := time.Date(2026, time.March, 3, 20, 0, 0, 0, time.UTC)

	var records []telemetry.RoundRecord
	for i := 0; i < 3; i++ {
		records = append(records, round(300, telemetry.OperatorAdd, base.Add(time.Duration(i)*time.Minute)))
	}
	for i := 0; i < 3; i++ {
		records = append(records, round(900, telemetry.OperatorAdd, evening.Add(time.Duration(i)*time.Minute)))
	}

	peaks := analytics.ComputeTemporalPeaks(records)
	require.True(t, peaks.Available)
	assert.Equal(t, 20, peaks.PeakHour)
	assert.Equal(t, time.Tuesday, peaks.PeakDay)
	assert.Equal(t, float64(900), peaks.PeakHourAvg)
}

func TestDeterminism(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	var records []telemetry.RoundRecord
	for i := 0; i < 20; i++ {
		records = append(records, round(uint64(100+i*37%800), telemetry.OperatorAdd, now.Add(time.Duration(i)*time.Hour)))
	}

	first := analytics.ComputeMastery(records)
	second := analytics.ComputeMastery(records)
	assert.Equal(t, first, second)

	assert.Equal(t, analytics.ComputeTemporalPeaks(records), analytics.ComputeTemporalPeaks(records))
	assert.Equal(t, analytics.ComputeDifficultyFit(records), analytics.ComputeDifficultyFit(records))
}
