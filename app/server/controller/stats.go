package controller

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/telemetry"
)

type userStats struct {
	telemetry.AggregateRow
	AverageScore     float64 `json:"averageScore"`
	AverageSessionMs float64 `json:"averageSessionMs"`
}

// HandleStats returns the user's rolling aggregate plus the read-time
// derived averages.
func (c *Controller) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	row, found, err := c.App.Aggregates.Get(r.Context(), userID)
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

	writeJSON(w, http.StatusOK, userStats{
		AggregateRow:     row,
		AverageScore:     row.AverageScore(),
		AverageSessionMs: row.AverageSessionMs(),
	})
}
