// Package achievements evaluates a fixed, versioned threshold catalog
// against a user's aggregate row and recent history. Evaluation is a
// pure predicate check: the same inputs always unlock the same set, and
// tracking what was already shown belongs to the presentation layer.
package achievements

// CatalogVersion bumps whenever thresholds change, so stored progress
// captured under an older table is identifiable.
const CatalogVersion = 1

// Metric names which aggregate or history quantity a predicate reads.
type Metric string

const (
	MetricTotalGames     Metric = "total_games"
	MetricBestScore      Metric = "best_score"
	MetricHighestLevel   Metric = "highest_level"
	MetricComboMax       Metric = "combo_max"
	MetricCumulativeTime Metric = "cumulative_time_ms"
	MetricStreakDays     Metric = "streak_days"
)

// Achievement is one catalog entry.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Metric      Metric `json:"metric"`
	Threshold   uint64 `json:"threshold"`
}

// Catalog is ordered from easiest to hardest within each metric so the
// "next achievement" for a locked metric is the first locked entry.
var Catalog = []Achievement{
	{ID: "first_steps", Name: "First Steps", Description: "Complete your first round", Metric: MetricTotalGames, Threshold: 1},
	{ID: "regular", Name: "Regular", Description: "Complete 25 rounds", Metric: MetricTotalGames, Threshold: 25},
	{ID: "dedicated", Name: "Dedicated", Description: "Complete 100 rounds", Metric: MetricTotalGames, Threshold: 100},
	{ID: "veteran", Name: "Veteran", Description: "Complete 500 rounds", Metric: MetricTotalGames, Threshold: 500},

	{ID: "scorer", Name: "Scorer", Description: "Score 500 in a single round", Metric: MetricBestScore, Threshold: 500},
	{ID: "high_scorer", Name: "High Scorer", Description: "Score 1000 in a single round", Metric: MetricBestScore, Threshold: 1000},
	{ID: "master_scorer", Name: "Master Scorer", Description: "Score 2500 in a single round", Metric: MetricBestScore, Threshold: 2500},

	{ID: "climber", Name: "Climber", Description: "Reach level 10", Metric: MetricHighestLevel, Threshold: 10},
	{ID: "mountaineer", Name: "Mountaineer", Description: "Reach level 25", Metric: MetricHighestLevel, Threshold: 25},

	{ID: "combo_artist", Name: "Combo Artist", Description: "Chain a 10x combo", Metric: MetricComboMax, Threshold: 10},
	{ID: "combo_legend", Name: "Combo Legend", Description: "Chain a 25x combo", Metric: MetricComboMax, Threshold: 25},

	{ID: "marathoner", Name: "Marathoner", Description: "Play 10 hours in total", Metric: MetricCumulativeTime, Threshold: 10 * 60 * 60 * 1000},

	{ID: "week_streak", Name: "Week Streak", Description: "Play on 7 consecutive days", Metric: MetricStreakDays, Threshold: 7},
}
