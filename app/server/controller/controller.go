package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cubematch/telemetry/app/server/types"
	"github.com/cubematch/telemetry/pkg/utils"
)

type Controller struct {
	App       *types.App
	JWTSecret []byte
	// AuthDisabled skips the token check entirely; meant for local
	// development and the test suite.
	AuthDisabled bool
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App:          app,
		JWTSecret:    []byte(utils.Env("JWT_SECRET", "change-me-please")),
		AuthDisabled: utils.EnvBool("AUTH_DISABLED", false),
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	// User-scoped routes: the token subject must match {id}.
	r.Handle("/users/{id}/rounds", c.RequireUser(http.HandlerFunc(c.HandleIngest))).Methods(http.MethodPost)
	r.Handle("/users/{id}/rounds/batch", c.RequireUser(http.HandlerFunc(c.HandleIngestBatch))).Methods(http.MethodPost)
	r.Handle("/users/{id}/rounds", c.RequireUser(http.HandlerFunc(c.HandleHistory))).Methods(http.MethodGet)
	r.Handle("/users/{id}/stats", c.RequireUser(http.HandlerFunc(c.HandleStats))).Methods(http.MethodGet)
	r.Handle("/users/{id}/analytics", c.RequireUser(http.HandlerFunc(c.HandleAnalytics))).Methods(http.MethodGet)
	r.Handle("/users/{id}/achievements", c.RequireUser(http.HandlerFunc(c.HandleAchievements))).Methods(http.MethodGet)

	r.HandleFunc("/leaderboard", c.HandleLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/ws", c.HandleWebSocket).Methods(http.MethodGet)

	return r, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
