// Package logflare is a thin client for the Logflare query API.
package logflare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logflaremodel "github.com/logflare-community/logflare-mcp/internal/model/logflare"
)

// DefaultBaseURL is the hosted Logflare API.
const DefaultBaseURL = "https://api.logflare.app"

// Client issues authenticated requests against the query, source-list, and
// schema endpoints. It holds no per-caller state; credentials travel with
// every call.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the given API base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Query forwards a SQL string to the query endpoint, scoped to the caller's
// source token. The API answers either {"result": [...]} or a bare array.
func (c *Client) Query(ctx context.Context, creds logflaremodel.Credentials, sql string) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("sql", sql)
	params.Set("source", creds.SourceToken)

	body, err := c.get(ctx, creds, "/api/query?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return decodeRows(body)
}

// ListSources fetches every source in the caller's account.
func (c *Client) ListSources(ctx context.Context, creds logflaremodel.Credentials) ([]map[string]any, error) {
	body, err := c.get(ctx, creds, "/api/sources")
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}

	// Some deployments wrap the list in an envelope.
	var envelope struct {
		Sources []map[string]any `json:"sources"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode sources response: %w", err)
	}
	return envelope.Sources, nil
}

// SourceSchema fetches the schema for the caller's bound source.
func (c *Client) SourceSchema(ctx context.Context, creds logflaremodel.Credentials) (map[string]any, error) {
	body, err := c.get(ctx, creds, "/api/sources/"+url.PathEscape(creds.SourceToken)+"/schema")
	if err != nil {
		return nil, err
	}

	var schema map[string]any
	if err := json.Unmarshal(body, &schema); err != nil {
		return nil, fmt.Errorf("decode schema response: %w", err)
	}
	return schema, nil
}

func (c *Client) get(ctx context.Context, creds logflaremodel.Credentials, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("logflare request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read logflare response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("logflare returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// decodeRows accepts both response shapes the query endpoint produces.
func decodeRows(body []byte) ([]map[string]any, error) {
	var envelope struct {
		Result []map[string]any `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Result != nil {
		return envelope.Result, nil
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return rows, nil
}
