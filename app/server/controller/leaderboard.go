package controller

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/redis"
)

const defaultLeaderboardSize = 10

// HandleLeaderboard returns the top entries of the best-score or
// total-score board.
func (c *Controller) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		writeError(w, http.StatusServiceUnavailable, "leaderboard not available")
		return
	}

	key := redis.LeaderboardBestKey
	by := r.URL.Query().Get("by")
	switch by {
	case "", "best":
		by = "best"
	case "total":
		key = redis.LeaderboardTotalKey
	default:
		writeError(w, http.StatusBadRequest, "invalid by, must be 'best' or 'total'")
		return
	}

	limit := defaultLeaderboardSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxLimit {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := c.App.RedisClient.Top(r.Context(), key, limit)
	if err != nil {
		c.App.Logger.Error("Leaderboard read failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "leaderboard not available")
		return
	}
	if entries == nil {
		entries = []redis.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"by":      by,
		"entries": entries,
	})
}
