package recommend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubematch/telemetry/pkg/analytics"
	"github.com/cubematch/telemetry/pkg/recommend"
	"github.com/cubematch/telemetry/pkg/telemetry"
)

func snapshot() *analytics.Snapshot {
	return &analytics.Snapshot{
		UserID: "u1",
		Trend:  analytics.Trend{Direction: analytics.TrendStable},
		Mastery: []analytics.OperatorMastery{
			{Operator: telemetry.OperatorAdd, Attempted: true, Score: 80},
			{Operator: telemetry.OperatorSub, Attempted: true, Score: 60},
			{Operator: telemetry.OperatorMul, Attempted: true, Score: 45},
			{Operator: telemetry.OperatorDiv, Attempted: true, Score: 70},
		},
		AvgMoveMs:    2000,
		ErrorRatePct: 10,
	}
}

func findByType(recs []recommend.Recommendation, t recommend.Type) (recommend.Recommendation, bool) {
	for _, r := range recs {
		if r.Type == t {
			return r, true
		}
	}
	return recommend.Recommendation{}, false
}

func TestDecliningTrendIsHighPriority(t *testing.T) {
	snap := snapshot()
	snap.Trend = analytics.Trend{Direction: analytics.TrendDeclining, ImprovementPct: -25}

	recs := recommend.Generate(snap)
	rec, ok := findByType(recs, recommend.TypeDifficultyDown)
	require.True(t, ok)
	assert.Equal(t, recommend.PriorityHigh, rec.Priority)

	_, up := findByType(recs, recommend.TypeDifficultyUp)
	assert.False(t, up)
}

func TestImprovingTrendSuggestsRaisingDifficulty(t *testing.T) {
	snap := snapshot()
	snap.Trend = analytics.Trend{Direction: analytics.TrendImproving, ImprovementPct: 40}

	recs := recommend.Generate(snap)
	rec, ok := findByType(recs, recommend.TypeDifficultyUp)
	require.True(t, ok)
	assert.Equal(t, recommend.PriorityMedium, rec.Priority)
}

func TestWeakestOperatorFocus(t *testing.T) {
	recs := recommend.Generate(snapshot())

	rec, ok := findByType(recs, recommend.TypeOperatorFocus)
	require.True(t, ok)
	require.NotNil(t, rec.Operator)
	assert.Equal(t, telemetry.OperatorMul, *rec.Operator)
	assert.Equal(t, recommend.PriorityMedium, rec.Priority)
}

func TestLowMasteryFocusIsHighPriority(t *testing.T) {
	snap := snapshot()
	snap.Mastery[2].Score = 20

	recs := recommend.Generate(snap)
	rec, ok := findByType(recs, recommend.TypeOperatorFocus)
	require.True(t, ok)
	assert.Equal(t, recommend.PriorityHigh, rec.Priority)
}

func TestMasteryTieBreakPrefersCanonicalOrder(t *testing.T) {
	snap := snapshot()
	for i := range snap.Mastery {
		snap.Mastery[i].Score = 50
	}

	recs := recommend.Generate(snap)
	rec, ok := findByType(recs, recommend.TypeOperatorFocus)
	require.True(t, ok)
	assert.Equal(t, telemetry.OperatorAdd, *rec.Operator, "ties resolve ADD > SUB > MUL > DIV")
}

func TestSpeedRulesAreMutuallyExclusive(t *testing.T) {
	slow := snapshot()
	slow.AvgMoveMs = 4000
	slow.ErrorRatePct = 30

	recs := recommend.Generate(slow)
	_, hasDrill := findByType(recs, recommend.TypeSpeedDrill)
	_, hasPacing := findByType(recs, recommend.TypeAccuracyPacing)
	assert.True(t, hasDrill)
	assert.False(t, hasPacing)

	fast := snapshot()
	fast.AvgMoveMs = 800
	fast.ErrorRatePct = 30

	recs = recommend.Generate(fast)
	_, hasDrill = findByType(recs, recommend.TypeSpeedDrill)
	_, hasPacing = findByType(recs, recommend.TypeAccuracyPacing)
	assert.False(t, hasDrill)
	assert.True(t, hasPacing)
}

func TestAllMatchingRulesEmit(t *testing.T) {
	snap := snapshot()
	snap.Trend = analytics.Trend{Direction: analytics.TrendDeclining, ImprovementPct: -30}
	snap.AvgMoveMs = 3500

	recs := recommend.Generate(snap)
	assert.Len(t, recs, 3, "declining + operator focus + speed drill all emit")

	// Fixed evaluation order keeps output deterministic.
	assert.Equal(t, recommend.TypeDifficultyDown, recs[0].Type)
	assert.Equal(t, recommend.TypeOperatorFocus, recs[1].Type)
	assert.Equal(t, recommend.TypeSpeedDrill, recs[2].Type)
}
