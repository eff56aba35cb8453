package tools

import (
	"context"

	logflaremodel "github.com/logflare-community/logflare-mcp/internal/model/logflare"
)

type credentialsKey struct{}

// WithCredentials binds a caller's Logflare credentials to the context for the
// duration of one tool invocation. The registry is shared across sessions;
// this is how each call stays scoped to the session that issued it.
func WithCredentials(ctx context.Context, creds logflaremodel.Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFromContext recovers the credentials bound by WithCredentials.
func CredentialsFromContext(ctx context.Context) (logflaremodel.Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(logflaremodel.Credentials)
	return creds, ok && creds.Valid()
}
