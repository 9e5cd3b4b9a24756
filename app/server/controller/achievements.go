package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/achievements"
	"github.com/cubematch/telemetry/pkg/telemetry"
)

// Streak evaluation window. Long enough for any streak the catalog
// awards, bounded so the handler never scans a whole history.
const streakWindowDays = 30

type achievementsResponse struct {
	CatalogVersion int                     `json:"catalogVersion"`
	Unlocked       []string                `json:"unlocked"`
	Progress       []achievements.Progress `json:"progress"`
}

// HandleAchievements evaluates the catalog against the user's current
// aggregate. Evaluation is pure; calling it twice on unchanged data
// returns the identical set.
func (c *Controller) HandleAchievements(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	ctx := r.Context()

	row, found, err := c.App.Aggregates.Get(ctx, userID)
	if err != nil {
		c.App.Logger.Error("Aggregate read failed",
			zap.String("user_id", userID),
			zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}

	history, err := c.loadStreakWindow(ctx, userID)
	if err != nil {
		c.App.Logger.Error("History query failed",
			zap.String("user_id", userID),
			zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
		return
	}

	unlocked := achievements.Evaluate(row, history)
	if unlocked == nil {
		unlocked = []string{}
	}

	writeJSON(w, http.StatusOK, achievementsResponse{
		CatalogVersion: achievements.CatalogVersion,
		Unlocked:       unlocked,
		Progress:       achievements.EvaluateProgress(row, history),
	})
}

func (c *Controller) loadStreakWindow(ctx context.Context, userID string) ([]telemetry.RoundRecord, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -streakWindowDays)

	var out []telemetry.RoundRecord
	cursor := ""
	for {
		page, next, err := c.App.History.Query(ctx, userID, from, to, cursor, maxLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if next == "" {
			return out, nil
		}
		cursor = next
	}
}
