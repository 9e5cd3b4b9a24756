package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/telemetry"
)

// batchItemResult is the wire form of one batch outcome.
type batchItemResult struct {
	Index    int                        `json:"index"`
	RecordID string                     `json:"recordId,omitempty"`
	Accepted bool                       `json:"accepted"`
	Error    *telemetry.ValidationError `json:"error,omitempty"`
	Message  string                     `json:"message,omitempty"`
}

// HandleIngest accepts one candidate round for the user in the path.
func (c *Controller) HandleIngest(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var candidate telemetry.CandidateRound
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		writeJSON(w, http.StatusBadRequest, &telemetry.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}

	rec, _, err := c.App.Pipeline.Ingest(r.Context(), userID, candidate)
	if err != nil {
		c.writeIngestError(w, userID, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"recordId": rec.ID})
}

// HandleIngestBatch accepts up to the batch cap of candidates and
// reports per-item outcomes with a 207.
func (c *Controller) HandleIngestBatch(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var candidates []telemetry.CandidateRound
	if err := json.NewDecoder(r.Body).Decode(&candidates); err != nil {
		writeJSON(w, http.StatusBadRequest, &telemetry.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}

	results, err := c.App.Pipeline.IngestMany(r.Context(), userID, candidates)
	if err != nil {
		c.writeIngestError(w, userID, err)
		return
	}

	out := make([]batchItemResult, len(results))
	for i, res := range results {
		item := batchItemResult{Index: res.Index, RecordID: res.RecordID, Accepted: res.Err == nil}
		if res.Err != nil {
			var ve *telemetry.ValidationError
			if errors.As(res.Err, &ve) {
				item.Error = ve
			} else {
				item.Message = "storage temporarily unavailable"
			}
			item.RecordID = ""
		}
		out[i] = item
	}

	writeJSON(w, http.StatusMultiStatus, map[string]interface{}{"results": out})
}

func (c *Controller) writeIngestError(w http.ResponseWriter, userID string, err error) {
	var ve *telemetry.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ve)
	case telemetry.IsInvariantViolation(err):
		c.App.Logger.Error("Aggregate invariant rejected round",
			zap.String("user_id", userID),
			zap.Error(err))
		writeError(w, http.StatusConflict, "aggregate invariant violated")
	default:
		c.App.Logger.Error("Ingestion failed",
			zap.String("user_id", userID),
			zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
	}
}
