package logflare

// Credentials identifies one caller against the Logflare API. A copy is bound
// to each session at creation time and never mutated afterwards.
type Credentials struct {
	APIKey      string
	SourceToken string
}

// Valid reports whether both credential parts are present.
func (c Credentials) Valid() bool {
	return c.APIKey != "" && c.SourceToken != ""
}

// Source is one log collection in the caller's account.
type Source struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LogStats aggregates one statistics query over a time window. Numeric fields
// default to 0 and timestamp fields to null when the backend omits them.
type LogStats struct {
	TotalLogs      int64   `json:"total_logs"`
	UniqueLevels   int64   `json:"unique_levels"`
	ErrorCount     int64   `json:"error_count"`
	WarningCount   int64   `json:"warning_count"`
	EarliestLog    *string `json:"earliest_log"`
	LatestLog      *string `json:"latest_log"`
	TimeRangeHours int     `json:"time_range_hours"`
}
