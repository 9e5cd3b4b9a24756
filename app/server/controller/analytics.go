package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/analytics"
	"github.com/cubematch/telemetry/pkg/recommend"
)

type analyticsResponse struct {
	*analytics.Snapshot
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

// HandleAnalytics computes the full analytics snapshot over the
// requested window and derives recommendations from it. Nothing here is
// persisted; two calls over unchanged history return the same numbers.
func (c *Controller) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	days := analytics.DefaultWindowDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = n
	}

	snap, err := c.App.Engine.Snapshot(r.Context(), userID, days)
	if err != nil {
		var insufficient *analytics.InsufficientDataError
		switch {
		case errors.As(err, &insufficient):
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"insufficientData": true,
				"metric":           insufficient.Metric,
				"needed":           insufficient.Needed,
				"got":              insufficient.Got,
			})
		case errors.Is(err, analytics.ErrTimedOut):
			writeError(w, http.StatusGatewayTimeout, "analytics timed out")
		default:
			c.App.Logger.Error("Analytics snapshot failed",
				zap.String("user_id", userID),
				zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
		}
		return
	}

	recs := recommend.Generate(snap)
	if recs == nil {
		recs = []recommend.Recommendation{}
	}

	writeJSON(w, http.StatusOK, analyticsResponse{Snapshot: snap, Recommendations: recs})
}
