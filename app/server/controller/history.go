package controller

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/telemetry"
)

type historyPage struct {
	Records    []telemetry.RoundRecord `json:"records"`
	NextCursor string                  `json:"nextCursor,omitempty"`
}

// HandleHistory returns one page of the user's round log, ascending by
// timestamp.
func (c *Controller) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	spec, err := parsePageSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, next, err := c.App.History.Query(r.Context(), userID, spec.From, spec.To, spec.Cursor, spec.Limit)
	if err != nil {
		c.App.Logger.Error("History query failed",
			zap.String("user_id", userID),
			zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
		return
	}

	if records == nil {
		records = []telemetry.RoundRecord{}
	}
	writeJSON(w, http.StatusOK, historyPage{Records: records, NextCursor: next})
}
