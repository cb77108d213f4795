package kit

import "context"

type contextKey string

const (
	// TransportKey holds "http" or "mcp".
	TransportKey contextKey = "kit_transport"
	// RequestIDKey holds the id chi's RequestID middleware assigned.
	RequestIDKey contextKey = "kit_request_id"
)

// WithTransport records which surface a call arrived on.
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// GetTransport defaults to "http".
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok && v != "" {
		return v
	}
	return "http"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}
