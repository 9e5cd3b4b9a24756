package controller

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

type pageSpec struct {
	Limit  int
	Cursor string
	From   time.Time
	To     time.Time
}

// parsePageSpec reads limit, cursor, and the [from, to] time window from
// the query string. The cursor is the record id of the last row of the
// previous page, opaque to the client.
func parsePageSpec(r *http.Request) (pageSpec, error) {
	qs := r.URL.Query()

	limit := defaultLimit
	if v := qs.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err != nil || n <= 0 {
			return pageSpec{}, errInvalidLimit
		} else {
			limit = int(math.Min(float64(n), maxLimit))
		}
	}

	from := time.Time{}
	if v := qs.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return pageSpec{}, errInvalidFrom
		}
		from = t
	}

	to := time.Now().UTC()
	if v := qs.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return pageSpec{}, errInvalidTo
		}
		to = t
	}

	if to.Before(from) {
		return pageSpec{}, errInvalidWindow
	}

	return pageSpec{Limit: limit, Cursor: qs.Get("cursor"), From: from, To: to}, nil
}

var (
	errInvalidLimit  = &parseError{msg: "invalid limit"}
	errInvalidFrom   = &parseError{msg: "invalid from, must be RFC3339"}
	errInvalidTo     = &parseError{msg: "invalid to, must be RFC3339"}
	errInvalidWindow = &parseError{msg: "invalid window, to precedes from"}
)

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }
