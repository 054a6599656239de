// Package http provides the JSON API server and its handlers.
//
// This file holds the helpers that turn query strings, path parameters and
// bodies into validated values.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"symptomlog/internal/core"
)

const (
	// defaultRangeDays mirrors the "last 30 days" preset of the charts.
	defaultRangeDays = 30
	// maxRangeDays bounds the day axis a single request may enumerate.
	maxRangeDays = 3660

	maxJSONBody     = 1 << 20
	maxSnapshotBody = 32 << 20
)

// DateRange is an inclusive from/to pair of ISO dates.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ParseDateRange reads from and to from the query. Missing values default to
// the 30 days ending today; malformed ones are a validation error, and so is
// a span longer than maxRangeDays. A from after to is passed through and
// yields an empty result.
func ParseDateRange(query url.Values, today time.Time) (DateRange, error) {
	rng := DateRange{
		From: core.FormatISODate(today.AddDate(0, 0, -(defaultRangeDays - 1))),
		To:   core.FormatISODate(today),
	}

	if v := strings.TrimSpace(query.Get("from")); v != "" {
		if !core.ValidISODate(v) {
			return rng, &core.ValidationError{Field: "from", Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", v)}
		}
		rng.From = v
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		if !core.ValidISODate(v) {
			return rng, &core.ValidationError{Field: "to", Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", v)}
		}
		rng.To = v
	}

	from, _ := core.ParseISODate(rng.From)
	to, _ := core.ParseISODate(rng.To)
	if days := int(to.Sub(from).Hours()/24) + 1; days > maxRangeDays {
		return rng, &core.ValidationError{Field: "to", Reason: fmt.Sprintf("range spans %d days, at most %d allowed", days, maxRangeDays)}
	}
	return rng, nil
}

// PathDate returns the {date} path parameter if it is a valid ISO date.
func PathDate(r *http.Request) (string, error) {
	date := chi.URLParam(r, "date")
	if !core.ValidISODate(date) {
		return "", &core.ValidationError{Field: "date", Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date)}
	}
	return date, nil
}

// ParseBool reads an optional boolean query parameter.
func ParseBool(query url.Values, key string) (bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &core.ValidationError{Field: key, Reason: "must be true or false"}
	}
	return b, nil
}

// ParseWindow reads the moving-average window. Absent means def; 0 turns the
// average off.
func ParseWindow(query url.Values, def int) (int, error) {
	v := strings.TrimSpace(query.Get("window"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 365 {
		return 0, &core.ValidationError{Field: "window", Reason: "must be a number between 0 and 365"}
	}
	return n, nil
}

// DecodeJSON reads a size-limited JSON body into dst. Unknown fields are
// rejected so typos do not silently turn into no-ops.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Field: "body", Reason: "empty request body"}
		}
		return &core.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

// ReadSnapshotBody reads an import payload.
func ReadSnapshotBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotBody))
	if err != nil {
		return nil, &core.ValidationError{Field: "body", Reason: err.Error()}
	}
	return data, nil
}

// sanitizeName removes control characters and trims whitespace.
func sanitizeName(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
