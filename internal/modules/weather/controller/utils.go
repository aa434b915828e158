package controller

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// parseIDList splits a comma separated id parameter ("1,2,3").
func parseIDList(s string) ([]uint, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, errors.New("all parameters need to be integers")
		}
		out = append(out, uint(n))
	}
	return out, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDate accepts RFC 3339 as well as plain date and date-time forms.
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// parseBoolIntParam reads a 0/1 query parameter; absent means false.
// Only non-negative integers are accepted.
func parseBoolIntParam(r *http.Request, name string) (bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return false, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return false, fmt.Errorf("the %q parameter must be an integer", name)
	}
	return n != 0, nil
}

// pathID reads the {id} wildcard.
func pathID(r *http.Request) (uint, error) {
	s := r.PathValue("id")
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(n), nil
}

// round2 clamps measurement values to the stored precision (2 decimals).
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
