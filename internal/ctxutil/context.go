// Package ctxutil provides type-safe context value management.
// Private key types prevent collisions with other packages.
package ctxutil

import "context"

type contextKey string

const (
	userIDKey    contextKey = "ctxutil.userID"
	chatIDKey    contextKey = "ctxutil.chatID"
	requestIDKey contextKey = "ctxutil.requestID"
)

// WithUserID adds a LINE user ID to the context. Used for rate limiting
// and log correlation.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID retrieves the user ID from the context, or "" if absent.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}

// WithChatID adds a chat ID to the context. The chat ID identifies the
// conversation (user, group, or room).
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatIDKey, chatID)
}

// GetChatID retrieves the chat ID from the context, or "" if absent.
func GetChatID(ctx context.Context) string {
	if chatID, ok := ctx.Value(chatIDKey).(string); ok {
		return chatID
	}
	return ""
}

// WithRequestID adds a request ID to the context for tracing.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID and whether it was present.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// PreserveTracing returns a detached context carrying only the tracing
// values. The result is independent of the parent's cancellation and
// deadlines; use it for work that must outlive the inbound request.
func PreserveTracing(ctx context.Context) context.Context {
	detached := context.Background()
	if userID := GetUserID(ctx); userID != "" {
		detached = WithUserID(detached, userID)
	}
	if chatID := GetChatID(ctx); chatID != "" {
		detached = WithChatID(detached, chatID)
	}
	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		detached = WithRequestID(detached, requestID)
	}
	return detached
}
