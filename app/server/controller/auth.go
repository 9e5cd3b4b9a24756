package controller

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// bearerSubject extracts and verifies the Authorization bearer token,
// returning its subject claim.
func (c *Controller) bearerSubject(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")

	tok, err := jwt.Parse(raw,
		func(t *jwt.Token) (any, error) { return c.JWTSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !tok.Valid {
		return "", false
	}

	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

// RequireUser middleware. The token subject must match the {id} path
// variable: users read and write only their own telemetry.
func (c *Controller) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.AuthDisabled {
			next.ServeHTTP(w, r)
			return
		}

		sub, ok := c.bearerSubject(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if sub != mux.Vars(r)["id"] {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}
