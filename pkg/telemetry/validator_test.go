package telemetry_test

import (
	"testing"

	"github.com/cubematch/telemetry/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func validCandidate() telemetry.CandidateRound {
	return telemetry.CandidateRound{
		Score:      450,
		Level:      3,
		ElapsedMs:  60000,
		Operator:   telemetry.OperatorAdd,
		Target:     100,
		Difficulty: telemetry.DifficultyMedium,
		Moves:      telemetry.MoveCounters{Total: 10, Successful: 8, Failed: 2},
		Accuracy:   80,
		Timing:     telemetry.TimingStats{FastestMs: 800, SlowestMs: 4000, AverageMs: 2000},
		ComboMax:   5,
		Chain:      3,
		Engagement: telemetry.EngagementMetrics{Engagement: 75, FocusTimePct: 90},
		Breakdown: telemetry.OperatorBreakdown{
			Add: telemetry.OperatorTally{Count: 10, Score: 450},
		},
	}
}

func TestValidateAcceptsWellFormedRound(t *testing.T) {
	v := telemetry.NewValidator(zaptest.NewLogger(t))

	rec, err := v.Validate("u1", validCandidate())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "u1", rec.UserID)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())
	assert.Equal(t, uint64(450), rec.Score)
	assert.Equal(t, telemetry.DifficultyMedium, rec.Difficulty)
	assert.Equal(t, uint32(0), rec.HintsUsed)
}

func TestValidateRejectsMoveCounterOverflow(t *testing.T) {
	v := telemetry.NewValidator(zaptest.NewLogger(t))

	c := validCandidate()
	c.Moves = telemetry.MoveCounters{Total: 10, Successful: 8, Failed: 5}

	_, err := v.Validate("u1", c)
	require.Error(t, err)
	assert.True(t, telemetry.IsValidation(err))

	ve := err.(*telemetry.ValidationError)
	assert.Equal(t, "moveCounters", ve.Field)
}

func TestValidateRejectsWrappingMoveCounters(t *testing.T) {
	v := telemetry.NewValidator(zaptest.NewLogger(t))

	// 2^31 + 2^31 wraps to 0 in uint32 arithmetic; the sum must still
	// be compared against Total without wrapping.
	c := validCandidate()
	c.Moves = telemetry.MoveCounters{Total: 10, Successful: 1 << 31, Failed: 1 << 31}
	c.Breakdown = telemetry.OperatorBreakdown{}

	_, err := v.Validate("u1", c)
	require.Error(t, err)
	require.True(t, telemetry.IsValidation(err))
	assert.Equal(t, "moveCounters", err.(*telemetry.ValidationError).Field)

	// Same wrap through the per-operator sub-counts.
	c = validCandidate()
	c.Breakdown = telemetry.OperatorBreakdown{
		Add: telemetry.OperatorTally{Count: 1 << 31},
		Sub: telemetry.OperatorTally{Count: 1 << 31},
	}

	_, err = v.Validate("u1", c)
	require.Error(t, err)
	require.True(t, telemetry.IsValidation(err))
	assert.Equal(t, "perOperatorBreakdown", err.(*telemetry.ValidationError).Field)
}

func TestValidateRejections(t *testing.T) {
	v := telemetry.NewValidator(zaptest.NewLogger(t))

	cases := []struct {
		name   string
		mutate func(*telemetry.CandidateRound)
		field  string
	}{
		{"negative score", func(c *telemetry.CandidateRound) { c.Score = -1 }, "score"},
		{"zero level", func(c *telemetry.CandidateRound) { c.Level = 0 }, "level"},
		{"negative elapsed", func(c *telemetry.CandidateRound) { c.ElapsedMs = -5 }, "elapsedMs"},
		{"unknown operator", func(c *telemetry.CandidateRound) { c.Operator = "MOD" }, "operator"},
		{"accuracy above range", func(c *telemetry.CandidateRound) { c.Accuracy = 101 }, "accuracyRate"},
		{"accuracy below range", func(c *telemetry.CandidateRound) { c.Accuracy = -1 }, "accuracyRate"},
		{"unknown difficulty", func(c *telemetry.CandidateRound) { c.Difficulty = "BRUTAL" }, "difficulty"},
		{"breakdown overflow", func(c *telemetry.CandidateRound) {
			c.Breakdown.Add.Count = 8
			c.Breakdown.Sub.Count = 8
		}, "perOperatorBreakdown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCandidate()
			tc.mutate(&c)

			_, err := v.Validate("u1", c)
			require.Error(t, err)
			require.True(t, telemetry.IsValidation(err))
			assert.Equal(t, tc.field, err.(*telemetry.ValidationError).Field)
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	v := telemetry.NewValidator(zaptest.NewLogger(t))

	c := validCandidate()
	c.Difficulty = ""
	c.Engagement = telemetry.EngagementMetrics{Engagement: 140, FocusTimePct: -3}
	hints := uint32(2)
	c.HintsUsed = &hints

	rec, err := v.Validate("u1", c)
	require.NoError(t, err)

	assert.Equal(t, telemetry.DifficultyMedium, rec.Difficulty)
	assert.Equal(t, float64(100), rec.Engagement.Engagement)
	assert.Equal(t, float64(0), rec.Engagement.FocusTimePct)
	assert.Equal(t, uint32(2), rec.HintsUsed)
}

func TestValidateTimestampsAreMonotonic(t *testing.T) {
	v := telemetry.NewValidator(zaptest.NewLogger(t))

	var last *telemetry.RoundRecord
	for i := 0; i < 100; i++ {
		rec, err := v.Validate("u1", validCandidate())
		require.NoError(t, err)

		if last != nil {
			assert.True(t, rec.Timestamp.After(last.Timestamp), "timestamps must strictly increase")
			assert.Greater(t, rec.ID, last.ID, "record ids must sort in issue order")
		}
		last = rec
	}
}
