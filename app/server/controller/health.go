package controller

import (
	"context"
	"net/http"
)

type healthChecker interface {
	Health(ctx context.Context) error
}

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if hc, ok := c.App.History.(healthChecker); ok {
		if err := hc.Health(ctx); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "database connection error"})
			return
		}
	}

	if c.App.RedisClient != nil {
		if err := c.App.RedisClient.Health(ctx); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "redis connection error"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
