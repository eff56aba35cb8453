// Package tools exposes the Logflare tool catalog to MCP clients.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/logflare-community/logflare-mcp/internal/analysis/fields"
	"github.com/logflare-community/logflare-mcp/internal/analysis/timeexpr"
	logflaremodel "github.com/logflare-community/logflare-mcp/internal/model/logflare"
	"github.com/logflare-community/logflare-mcp/internal/service/logflare"
)

const (
	serverName    = "logflare-mcp"
	serverVersion = "1.0.0"

	defaultSampleLimit  = 5
	maxSampleLimit      = 100
	defaultExploreLimit = 10
	maxExploreLimit     = 50
	defaultRangeLimit   = 100
	maxRangeLimit       = 1000
)

// Registry binds the fixed tool catalog to a Logflare client. It is built
// once at startup and shared by every session; per-session credentials arrive
// through the invocation context, never through registry state.
type Registry struct {
	client *logflare.Client
}

// NewRegistry builds the shared registry around one backend client.
func NewRegistry(client *logflare.Client) *Registry {
	return &Registry{client: client}
}

// NewServer constructs a fresh MCP server instance with the full catalog
// registered. Each SSE connection gets its own instance.
func (r *Registry) NewServer() *server.MCPServer {
	srv := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	r.Attach(srv)
	return srv
}

// Attach registers every tool on the given server.
func (r *Registry) Attach(srv *server.MCPServer) {
	srv.AddTool(mcp.NewTool("query_logs",
		mcp.WithDescription("Run a raw SQL query against the session's Logflare source. The query is forwarded verbatim to the BigQuery-backed query API."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("SQL query to execute, e.g. SELECT timestamp, event_message FROM `my.source` LIMIT 10"),
		),
	), r.handleQueryLogs)

	srv.AddTool(mcp.NewTool("list_sources",
		mcp.WithDescription("List all log sources in the account, with id, name, and description."),
	), r.handleListSources)

	srv.AddTool(mcp.NewTool("get_source_schema",
		mcp.WithDescription("Fetch the schema of the session's bound source."),
	), r.handleGetSourceSchema)

	srv.AddTool(mcp.NewTool("get_sample_logs",
		mcp.WithDescription("Fetch recent sample logs from a source: five fixed columns over the last 7 days, newest first."),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Source name to sample, e.g. my.app.logs"),
		),
		mcp.WithNumber("limit",
			mcp.DefaultNumber(defaultSampleLimit),
			mcp.Description("Number of rows to fetch (max 100)"),
		),
	), r.handleGetSampleLogs)

	srv.AddTool(mcp.NewTool("query_logs_formatted",
		mcp.WithDescription("Run a SQL query and append a human-readable formatted_timestamp column (YYYY-MM-DD HH:MM:SS). The query must enumerate its columns (no SELECT *) and include a timestamp column."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("SQL query with explicit columns including timestamp"),
		),
	), r.handleQueryLogsFormatted)

	srv.AddTool(mcp.NewTool("explore_fields",
		mcp.WithDescription("Discover the field structure of recent logs: flattens nested metadata into dot-joined paths with observed types and sample values."),
		mcp.WithString("source",
			mcp.Description("Source name to explore; defaults to the session's bound source"),
		),
		mcp.WithNumber("limit",
			mcp.DefaultNumber(defaultExploreLimit),
			mcp.Description("Number of recent records to inspect (max 50)"),
		),
	), r.handleExploreFields)

	srv.AddTool(mcp.NewTool("get_log_stats",
		mcp.WithDescription("Aggregate statistics over a time window: totals, distinct levels, error and warning counts, earliest and latest timestamps."),
		mcp.WithString("time_range",
			mcp.DefaultString("24h"),
			mcp.Description("Window token such as 24h or 7d; defaults to 24h"),
		),
		mcp.WithString("source",
			mcp.Description("Source name; defaults to the session's bound source"),
		),
	), r.handleGetLogStats)

	srv.AddTool(mcp.NewTool("get_logs_by_time_range",
		mcp.WithDescription(`Fetch logs between two points in time. Times accept "now", "2 hours ago", "last 3 days", "yesterday", calendar dates, or Unix seconds.`),
		mcp.WithString("start_time", mcp.Required(), mcp.Description("Start of the range")),
		mcp.WithString("end_time", mcp.Required(), mcp.Description("End of the range")),
		mcp.WithString("source", mcp.Description("Source name; defaults to the session's bound source")),
		mcp.WithNumber("limit",
			mcp.DefaultNumber(defaultRangeLimit),
			mcp.Description("Maximum rows to return (max 1000)"),
		),
		mcp.WithBoolean("formatted", mcp.Description("Render timestamps human-readable")),
	), r.handleGetLogsByTimeRange)

	srv.AddTool(mcp.NewTool("get_logs_from_time",
		mcp.WithDescription("Fetch logs from a point in time until now. Accepts the same time expressions as get_logs_by_time_range."),
		mcp.WithString("start_time", mcp.Required(), mcp.Description("Start of the window")),
		mcp.WithString("source", mcp.Description("Source name; defaults to the session's bound source")),
		mcp.WithNumber("limit",
			mcp.DefaultNumber(defaultRangeLimit),
			mcp.Description("Maximum rows to return (max 1000)"),
		),
		mcp.WithBoolean("formatted", mcp.Description("Render timestamps human-readable")),
	), r.handleGetLogsFromTime)
}

func (r *Registry) handleQueryLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creds, args, errResult := requireCall(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	query, ok := stringArg(args, "query")
	if !ok {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	rows, err := r.client.Query(ctx, creds, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"rows": rows, "count": len(rows)})
}

func (r *Registry) handleListSources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creds, _, errResult := requireCall(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	raw, err := r.client.ListSources(ctx, creds)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"sources": normalizeSources(raw)})
}

func (r *Registry) handleGetSourceSchema(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creds, _, errResult := requireCall(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	schema, err := r.client.SourceSchema(ctx, creds)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"source": creds.SourceToken, "schema": schema})
}

func (r *Registry) handleGetSampleLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creds, args, errResult := requireCall(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	source, ok := stringArg(args, "source")
	if !ok {
		return mcp.NewToolResultError("source parameter is required"), nil
	}
	limit := intArg(args, "limit", defaultSampleLimit, maxSampleLimit)

	rows, err := r.client.Query(ctx, creds, sampleLogsQuery(source, limit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"logs": rows, "count": len(rows)})
}

func (r *Registry) handleQueryLogsFormatted(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creds, args, errResult := requireCall(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	query, ok := stringArg(args, "query")
	if !ok {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	wrapped, err := formattedQuery(query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rows, err := r.client.Query(ctx, creds, wrapped)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"rows": rows, "count": len(rows)})
}

func (r *Registry) handleExploreFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creds, args, errResult := requireCall(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	source := sourceArg(args, creds)
	limit := intArg(args, "limit", defaultExploreLimit, maxExploreLimit)

	rows, err := r.client.Query(ctx, creds, sampleLogsQuery(source, limit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	discovered := fields.Flatten(rows)
	return jsonResult(map[string]any{
		"source":     source,
		"fields":     discovered,
		"fieldCount": len(discovered),
	})
}

func (r *Registry) handleGetLogStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creds, args, errResult := requireCall(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	token, _ := stringArg(args, "time_range")
	if token == "" {
		token = "24h"
	}
	hours := timeexpr.ParseRangeHours(token)
	source := sourceArg(args, creds)

	rows, err := r.client.Query(ctx, creds, statsQuery(source, hours))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stats := statsFromRows(rows, hours)
	return jsonResult(stats)
}

func (r *Registry) handleGetLogsByTimeRange(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creds, args, errResult := requireCall(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	startRaw, ok := stringArg(args, "start_time")
	if !ok {
		return mcp.NewToolResultError("start_time parameter is required"), nil
	}
	endRaw, ok := stringArg(args, "end_time")
	if !ok {
		return mcp.NewToolResultError("end_time parameter is required"), nil
	}

	start, err := timeexpr.Parse(startRaw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := timeexpr.Parse(endRaw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	source := sourceArg(args, creds)
	limit := intArg(args, "limit", defaultRangeLimit, maxRangeLimit)
	formatted := boolArg(args, "formatted")

	rows, err := r.client.Query(ctx, creds, timeBoundQuery(source, start.SQL, end.SQL, limit, formatted))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"logs":       rows,
		"count":      len(rows),
		"start_time": startRaw,
		"end_time":   endRaw,
	})
}

func (r *Registry) handleGetLogsFromTime(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creds, args, errResult := requireCall(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	startRaw, ok := stringArg(args, "start_time")
	if !ok {
		return mcp.NewToolResultError("start_time parameter is required"), nil
	}

	start, err := timeexpr.Parse(startRaw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	source := sourceArg(args, creds)
	limit := intArg(args, "limit", defaultRangeLimit, maxRangeLimit)
	formatted := boolArg(args, "formatted")

	rows, err := r.client.Query(ctx, creds, timeBoundQuery(source, start.SQL, "", limit, formatted))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"logs":       rows,
		"count":      len(rows),
		"start_time": startRaw,
	})
}

// requireCall extracts the session credentials and argument map common to
// every handler. A missing credential binding means the message bypassed the
// session router, so the call is rejected rather than served unauthenticated.
func requireCall(ctx context.Context, request mcp.CallToolRequest) (logflaremodel.Credentials, map[string]any, *mcp.CallToolResult) {
	creds, ok := CredentialsFromContext(ctx)
	if !ok {
		return logflaremodel.Credentials{}, nil, mcp.NewToolResultError("no credentials bound to this session")
	}
	args, _ := request.Params.Arguments.(map[string]any)
	return creds, args, nil
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok && v != ""
}

func sourceArg(args map[string]any, creds logflaremodel.Credentials) string {
	if source, ok := stringArg(args, "source"); ok {
		return source
	}
	return creds.SourceToken
}

func intArg(args map[string]any, key string, fallback, ceiling int) int {
	v, ok := args[key].(float64)
	if !ok || v < 1 {
		return fallback
	}
	if int(v) > ceiling {
		return ceiling
	}
	return int(v)
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// normalizeSources reduces raw source objects to the fixed id/name/description
// shape; missing fields become empty strings.
func normalizeSources(raw []map[string]any) []logflaremodel.Source {
	sources := make([]logflaremodel.Source, 0, len(raw))
	for _, item := range raw {
		sources = append(sources, logflaremodel.Source{
			ID:          stringField(item, "id"),
			Name:        stringField(item, "name"),
			Description: stringField(item, "description"),
		})
	}
	return sources
}

// stringField renders a possibly-absent, possibly-numeric field as a string.
func stringField(item map[string]any, key string) string {
	switch v := item[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// statsFromRows reshapes the single aggregate row into the fixed statistics
// object, defaulting numerics to 0 and timestamps to null.
func statsFromRows(rows []map[string]any, hours int) logflaremodel.LogStats {
	stats := logflaremodel.LogStats{TimeRangeHours: hours}
	if len(rows) == 0 {
		return stats
	}
	row := rows[0]
	stats.TotalLogs = int64Field(row, "total_logs")
	stats.UniqueLevels = int64Field(row, "unique_levels")
	stats.ErrorCount = int64Field(row, "error_count")
	stats.WarningCount = int64Field(row, "warning_count")
	stats.EarliestLog = timestampField(row, "earliest_log")
	stats.LatestLog = timestampField(row, "latest_log")
	return stats
}

// int64Field tolerates the numeric encodings BigQuery results show up with.
func int64Field(row map[string]any, key string) int64 {
	switch v := row[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func timestampField(row map[string]any, key string) *string {
	switch v := row[key].(type) {
	case string:
		return &v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	default:
		return nil
	}
}
