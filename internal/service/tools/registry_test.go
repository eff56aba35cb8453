package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	logflaremodel "github.com/logflare-community/logflare-mcp/internal/model/logflare"
	"github.com/logflare-community/logflare-mcp/internal/service/logflare"
)

var testCreds = logflaremodel.Credentials{APIKey: "key", SourceToken: "tok"}

func testContext() context.Context {
	return WithCredentials(context.Background(), testCreds)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func newBackend(t *testing.T, handler http.HandlerFunc) (*Registry, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewRegistry(logflare.NewClient(server.URL, 5*time.Second)), server
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func TestQueryLogsForwardsVerbatim(t *testing.T) {
	var gotSQL string
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotSQL = r.URL.Query().Get("sql")
		w.Write([]byte(`{"result": [{"event_message": "hello"}]}`))
	})

	result, err := registry.handleQueryLogs(testContext(),
		callRequest("query_logs", map[string]any{"query": "SELECT event_message FROM `app.logs`"}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if gotSQL != "SELECT event_message FROM `app.logs`" {
		t.Fatalf("backend saw %q", gotSQL)
	}
	if !strings.Contains(resultText(t, result), "hello") {
		t.Fatalf("result missing row: %s", resultText(t, result))
	}
}

func TestQueryLogsWrapsBackendError(t *testing.T) {
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad sql", http.StatusBadRequest)
	})

	result, err := registry.handleQueryLogs(testContext(),
		callRequest("query_logs", map[string]any{"query": "SELECT nope"}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool-level error")
	}
	if !strings.Contains(resultText(t, result), "bad sql") {
		t.Fatalf("error should carry backend text: %s", resultText(t, result))
	}
}

func TestMissingCredentialsRejected(t *testing.T) {
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be called")
	})

	result, err := registry.handleQueryLogs(context.Background(),
		callRequest("query_logs", map[string]any{"query": "SELECT 1"}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool-level error without credentials")
	}
}

func TestListSourcesNormalizesFields(t *testing.T) {
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"1","name":"app.logs"}]`))
	})

	result, err := registry.handleListSources(testContext(), callRequest("list_sources", nil))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	text := resultText(t, result)
	for _, want := range []string{`"id": "1"`, `"name": "app.logs"`, `"description": ""`} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %s: %s", want, text)
		}
	}
}

func TestGetSourceSchemaUsesBoundSource(t *testing.T) {
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sources/tok/schema" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"fields":[{"name":"timestamp"}]}`))
	})

	result, err := registry.handleGetSourceSchema(testContext(), callRequest("get_source_schema", nil))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, `"source": "tok"`) {
		t.Fatalf("output should echo the bound source: %s", text)
	}
}

func TestGetSampleLogsCapsLimit(t *testing.T) {
	var gotSQL string
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotSQL = r.URL.Query().Get("sql")
		w.Write([]byte(`[]`))
	})

	_, err := registry.handleGetSampleLogs(testContext(),
		callRequest("get_sample_logs", map[string]any{"source": "app.logs", "limit": float64(9999)}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if !strings.HasSuffix(gotSQL, "LIMIT 100") {
		t.Fatalf("limit should cap at 100: %s", gotSQL)
	}
}

func TestGetSampleLogsDefaultLimit(t *testing.T) {
	var gotSQL string
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotSQL = r.URL.Query().Get("sql")
		w.Write([]byte(`[]`))
	})

	_, err := registry.handleGetSampleLogs(testContext(),
		callRequest("get_sample_logs", map[string]any{"source": "app.logs"}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if !strings.HasSuffix(gotSQL, "LIMIT 5") {
		t.Fatalf("default limit should be 5: %s", gotSQL)
	}
}

func TestQueryLogsFormattedRejectsWildcard(t *testing.T) {
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be called for a wildcard projection")
	})

	result, err := registry.handleQueryLogsFormatted(testContext(),
		callRequest("query_logs_formatted", map[string]any{"query": "SELECT * FROM `src`"}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected validation error for wildcard projection")
	}
}

func TestQueryLogsFormattedRejectsMalformedSQL(t *testing.T) {
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be called for malformed SQL")
	})

	result, err := registry.handleQueryLogsFormatted(testContext(),
		callRequest("query_logs_formatted", map[string]any{"query": "DELETE EVERYTHING"}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected validation error for malformed SQL")
	}
}

func TestQueryLogsFormattedWrapsQuery(t *testing.T) {
	var gotSQL string
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotSQL = r.URL.Query().Get("sql")
		w.Write([]byte(`[]`))
	})

	_, err := registry.handleQueryLogsFormatted(testContext(),
		callRequest("query_logs_formatted", map[string]any{
			"query": "SELECT timestamp, event_message FROM `src` LIMIT 5",
		}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if !strings.Contains(gotSQL, "FORMAT_TIMESTAMP('%Y-%m-%d %H:%M:%S', timestamp) AS formatted_timestamp") {
		t.Fatalf("wrapped query missing derived column: %s", gotSQL)
	}
	if !strings.Contains(gotSQL, "FROM (SELECT timestamp, event_message FROM `src` LIMIT 5)") {
		t.Fatalf("original query should become a subquery: %s", gotSQL)
	}
}

func TestExploreFieldsFlattensRecords(t *testing.T) {
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"metadata": {"level": "error"}}, {"metadata": {"level": "info", "code": 500}}]`))
	})

	result, err := registry.handleExploreFields(testContext(),
		callRequest("explore_fields", map[string]any{"source": "app.logs"}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	text := resultText(t, result)
	for _, want := range []string{`"metadata.level"`, `"metadata.code"`, `"fieldCount": 3`} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %s: %s", want, text)
		}
	}
}

func TestExploreFieldsDefaultsToBoundSource(t *testing.T) {
	var gotSQL string
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotSQL = r.URL.Query().Get("sql")
		w.Write([]byte(`[]`))
	})

	_, err := registry.handleExploreFields(testContext(), callRequest("explore_fields", nil))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if !strings.Contains(gotSQL, "FROM `tok`") {
		t.Fatalf("query should target the bound source: %s", gotSQL)
	}
}

func TestGetLogStatsDefaultsAndWindow(t *testing.T) {
	var gotSQL string
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotSQL = r.URL.Query().Get("sql")
		w.Write([]byte(`[{"total_logs": "120", "unique_levels": 3}]`))
	})

	result, err := registry.handleGetLogStats(testContext(),
		callRequest("get_log_stats", map[string]any{"time_range": "7d"}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if !strings.Contains(gotSQL, "INTERVAL 168 HOUR") {
		t.Fatalf("7d should become 168 hours: %s", gotSQL)
	}
	text := resultText(t, result)
	for _, want := range []string{`"total_logs": 120`, `"unique_levels": 3`, `"error_count": 0`, `"earliest_log": null`} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %s: %s", want, text)
		}
	}
}

func TestGetLogsByTimeRangeValidatesTimes(t *testing.T) {
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be called for an invalid time expression")
	})

	result, err := registry.handleGetLogsByTimeRange(testContext(),
		callRequest("get_logs_by_time_range", map[string]any{
			"start_time": "banana",
			"end_time":   "now",
		}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(resultText(t, result), "banana") {
		t.Fatalf("error should name the input: %s", resultText(t, result))
	}
}

func TestGetLogsByTimeRangeBuildsBoundedQuery(t *testing.T) {
	var gotSQL string
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotSQL = r.URL.Query().Get("sql")
		w.Write([]byte(`[]`))
	})

	result, err := registry.handleGetLogsByTimeRange(testContext(),
		callRequest("get_logs_by_time_range", map[string]any{
			"start_time": "2 hours ago",
			"end_time":   "now",
			"limit":      float64(50000),
		}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if !strings.Contains(gotSQL, "timestamp >= TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL 2 HOUR)") {
		t.Fatalf("missing start bound: %s", gotSQL)
	}
	if !strings.Contains(gotSQL, "timestamp <= CURRENT_TIMESTAMP()") {
		t.Fatalf("missing end bound: %s", gotSQL)
	}
	if !strings.HasSuffix(gotSQL, "LIMIT 1000") {
		t.Fatalf("limit should cap at 1000: %s", gotSQL)
	}
	text := resultText(t, result)
	if !strings.Contains(text, `"start_time": "2 hours ago"`) {
		t.Fatalf("output should echo the bounds: %s", text)
	}
}

func TestGetLogsFromTimeFormattedColumns(t *testing.T) {
	var gotSQL string
	registry, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotSQL = r.URL.Query().Get("sql")
		w.Write([]byte(`[]`))
	})

	_, err := registry.handleGetLogsFromTime(testContext(),
		callRequest("get_logs_from_time", map[string]any{
			"start_time": "yesterday",
			"formatted":  true,
		}))
	if err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if !strings.Contains(gotSQL, "FORMAT_TIMESTAMP('%Y-%m-%d %H:%M:%S', timestamp) AS timestamp") {
		t.Fatalf("formatted flag should render the timestamp column: %s", gotSQL)
	}
	if strings.Contains(gotSQL, "timestamp <=") {
		t.Fatalf("open-ended variant should not emit an end bound: %s", gotSQL)
	}
}
