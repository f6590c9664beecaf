// Package http serves the dashboard page, its JSON API, chart images and a
// websocket channel for live recomputation.
package http

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"retaildash/internal/core"
)

const dateLayout = "2006-01-02"

// Query parameter names of a filter selection.
const (
	ParamStatus = "status"
	ParamType   = "type"
	ParamTier   = "tier"
	ParamStart  = "start"
	ParamEnd    = "end"
)

var ErrBadParam = errors.New("invalid parameter")

// CriteriaParams is a filter selection as sent by a client. A nil list means
// "not specified" and selects every option; an empty non-nil list is an
// explicit empty selection. Empty dates default to the dataset's range.
type CriteriaParams struct {
	Statuses []string `json:"statuses"`
	Types    []string `json:"types"`
	Tiers    []string `json:"tiers"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
}

// ParseCriteriaQuery reads a selection from repeated query parameters.
// "status=" with no value sends an explicit empty status selection.
func ParseCriteriaQuery(q url.Values) CriteriaParams {
	return CriteriaParams{
		Statuses: queryList(q, ParamStatus),
		Types:    queryList(q, ParamType),
		Tiers:    queryList(q, ParamTier),
		Start:    strings.TrimSpace(q.Get(ParamStart)),
		End:      strings.TrimSpace(q.Get(ParamEnd)),
	}
}

func queryList(q url.Values, key string) []string {
	raw, ok := q[key]
	if !ok {
		return nil
	}
	return cleanList(raw)
}

// cleanList sanitizes values and drops blanks, keeping a non-nil result.
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = sanitizeInput(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Criteria resolves the params against the dataset's options. A date-only
// end bound covers the whole of that day.
func (p CriteriaParams) Criteria(opts core.FilterOptions, emptyMatchesAll bool) (core.Criteria, error) {
	c := core.DefaultCriteria(opts)
	c.EmptyMatchesAll = emptyMatchesAll

	if p.Statuses != nil {
		c.Statuses = cleanList(p.Statuses)
	}
	if p.Types != nil {
		c.Types = cleanList(p.Types)
	}
	if p.Tiers != nil {
		c.Tiers = cleanList(p.Tiers)
	}

	if p.Start != "" {
		t, _, err := parseBound(p.Start)
		if err != nil {
			return core.Criteria{}, fmt.Errorf("%w: %s %q", ErrBadParam, ParamStart, p.Start)
		}
		c.Start = t
	}
	if p.End != "" {
		t, dateOnly, err := parseBound(p.End)
		if err != nil {
			return core.Criteria{}, fmt.Errorf("%w: %s %q", ErrBadParam, ParamEnd, p.End)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		c.End = t
	}
	return c, nil
}

// parseBound accepts YYYY-MM-DD (UTC midnight) or RFC 3339.
func parseBound(s string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.ParseInLocation(dateLayout, s, time.UTC); err == nil {
		return t, true, nil
	}
	if t, err = time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, err
}
