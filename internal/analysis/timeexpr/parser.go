// Package timeexpr turns human time expressions into BigQuery timestamp SQL.
package timeexpr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Unix seconds for 2000-01-01T00:00:00Z. Bare integers below this are not
// accepted as timestamps, so inputs like "42" fail validation instead of
// resolving to 1970.
const minUnixSeconds = 946684800

// Expr is one parsed time expression, rendered as a BigQuery timestamp
// expression suitable for direct interpolation into a WHERE clause.
type Expr struct {
	SQL string
}

var (
	agoPattern  = regexp.MustCompile(`(?i)^(\d+)\s+(second|minute|hour|day|week|month|year)s?\s+ago$`)
	lastPattern = regexp.MustCompile(`(?i)^last\s+(\d+)\s+(second|minute|hour|day|week|month|year)s?$`)
)

// Layouts tried for absolute calendar inputs, most specific first.
var calendarLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// Parse converts a human time expression into a timestamp expression.
// Recognized forms, in priority order: "now"/"current", "<N> <unit> ago",
// "last <N> <unit>", "yesterday"/"today", a calendar date/time, and a Unix
// seconds value. Anything else is a validation error naming the input.
func Parse(input string) (Expr, error) {
	expr := strings.TrimSpace(input)
	if expr == "" {
		return Expr{}, fmt.Errorf("time expression is empty; %s", acceptedForms)
	}

	switch strings.ToLower(expr) {
	case "now", "current":
		return Expr{SQL: "CURRENT_TIMESTAMP()"}, nil
	// Both resolve to one day back; clients depend on sharing that offset.
	case "yesterday", "today":
		return relative(1, "day"), nil
	}

	if m := agoPattern.FindStringSubmatch(expr); m != nil {
		return relativeFromMatch(m)
	}
	if m := lastPattern.FindStringSubmatch(expr); m != nil {
		return relativeFromMatch(m)
	}

	for _, layout := range calendarLayouts {
		if ts, err := time.Parse(layout, expr); err == nil {
			return Expr{SQL: fmt.Sprintf("TIMESTAMP('%s')", ts.UTC().Format("2006-01-02 15:04:05"))}, nil
		}
	}

	if secs, err := strconv.ParseInt(expr, 10, 64); err == nil {
		if secs > minUnixSeconds {
			return Expr{SQL: fmt.Sprintf("TIMESTAMP_SECONDS(%d)", secs)}, nil
		}
		return Expr{}, fmt.Errorf("numeric value %q is too small to be a Unix timestamp; %s", input, acceptedForms)
	}

	return Expr{}, fmt.Errorf("unrecognized time expression %q; %s", input, acceptedForms)
}

const acceptedForms = `accepted forms: "now", "<N> <unit> ago", "last <N> <unit>" (unit: second/minute/hour/day/week/month/year), "yesterday", "today", a date like "2024-01-15 10:30:00", or Unix seconds`

func relativeFromMatch(m []string) (Expr, error) {
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Expr{}, fmt.Errorf("invalid count %q in time expression: %w", m[1], err)
	}
	return relative(n, strings.ToLower(m[2])), nil
}

// relative renders "N units before now". TIMESTAMP_SUB only accepts intervals
// up to DAY, so week/month/year collapse to day counts.
func relative(n int, unit string) Expr {
	switch unit {
	case "week":
		n, unit = n*7, "day"
	case "month":
		n, unit = n*30, "day"
	case "year":
		n, unit = n*365, "day"
	}
	return Expr{SQL: fmt.Sprintf("TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL %d %s)", n, strings.ToUpper(unit))}
}

// ParseRangeHours converts a coarse range token ("24h", "7d") into a whole
// number of hours. Anything that does not parse cleanly falls back to 24; the
// statistics tool has always been permissive here, unlike Parse above.
func ParseRangeHours(token string) int {
	token = strings.ToLower(strings.TrimSpace(token))
	if idx := strings.Index(token, "h"); idx >= 0 {
		if n, err := strconv.Atoi(token[:idx]); err == nil && n > 0 {
			return n
		}
		return 24
	}
	if idx := strings.Index(token, "d"); idx >= 0 {
		if n, err := strconv.Atoi(token[:idx]); err == nil && n > 0 {
			return n * 24
		}
		return 24
	}
	return 24
}
