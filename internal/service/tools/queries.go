package tools

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Query builders for the fixed-shape tools. Source names and caller SQL are
// interpolated into the query text verbatim: the Logflare API takes raw SQL,
// so a caller can already run arbitrary queries against their own sources and
// escaping here would add nothing. Callers hold the same privileges either way.

const sampleColumns = "timestamp, id, event_message, metadata.level AS level, metadata.message AS message"

// Matches the projection of a single top-level SELECT. Deliberately narrow:
// it only needs to answer "no wildcard, has FROM", not parse SQL.
var projectionPattern = regexp.MustCompile(`(?is)^\s*select\s+(.+?)\s+from\s`)

var (
	errNoProjection = errors.New("query must be of the form SELECT <columns> FROM <source>")
	errWildcard     = errors.New("wildcard projections are not supported; enumerate the columns explicitly")
	errNoTimestamp  = errors.New("query must include a timestamp column")
)

// sampleLogsQuery selects five fixed columns over the last seven days,
// newest first.
func sampleLogsQuery(source string, limit int) string {
	return fmt.Sprintf(
		"SELECT %s FROM `%s` WHERE timestamp >= TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL 7 DAY) ORDER BY timestamp DESC LIMIT %d",
		sampleColumns, source, limit)
}

// formattedQuery wraps the caller's query as a subquery and appends a derived
// human-readable timestamp column. The caller must enumerate columns (no
// wildcard) and include a timestamp column for the derived column to read.
func formattedQuery(query string) (string, error) {
	m := projectionPattern.FindStringSubmatch(query)
	if m == nil {
		return "", errNoProjection
	}
	projection := strings.TrimSpace(m[1])
	if strings.Contains(projection, "*") {
		return "", errWildcard
	}
	if !strings.Contains(strings.ToLower(projection), "timestamp") {
		return "", errNoTimestamp
	}
	return fmt.Sprintf(
		"SELECT %s, FORMAT_TIMESTAMP('%%Y-%%m-%%d %%H:%%M:%%S', timestamp) AS formatted_timestamp FROM (%s)",
		projection, strings.TrimSpace(query)), nil
}

// statsQuery aggregates totals, level cardinality, and error/warn hits over
// the trailing window.
func statsQuery(source string, hours int) string {
	return fmt.Sprintf(`SELECT COUNT(*) AS total_logs, `+
		`COUNT(DISTINCT metadata.level) AS unique_levels, `+
		`COUNTIF(LOWER(event_message) LIKE '%%error%%' OR LOWER(metadata.level) = 'error') AS error_count, `+
		`COUNTIF(LOWER(event_message) LIKE '%%warn%%' OR LOWER(metadata.level) = 'warn') AS warning_count, `+
		`MIN(timestamp) AS earliest_log, MAX(timestamp) AS latest_log `+
		"FROM `%s` WHERE timestamp >= TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL %d HOUR)",
		source, hours)
}

// timeBoundQuery selects logs between two timestamp expressions, newest
// first. endSQL may be empty for the open-ended variant. When formatted is
// set the timestamp column is rendered human-readable.
func timeBoundQuery(source, startSQL, endSQL string, limit int, formatted bool) string {
	columns := sampleColumns
	if formatted {
		columns = "FORMAT_TIMESTAMP('%Y-%m-%d %H:%M:%S', timestamp) AS timestamp, id, event_message, metadata.level AS level, metadata.message AS message"
	}
	where := fmt.Sprintf("timestamp >= %s", startSQL)
	if endSQL != "" {
		where += fmt.Sprintf(" AND timestamp <= %s", endSQL)
	}
	return fmt.Sprintf("SELECT %s FROM `%s` WHERE %s ORDER BY timestamp DESC LIMIT %d",
		columns, source, where, limit)
}
