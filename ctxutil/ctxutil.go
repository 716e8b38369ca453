// Package ctxutil carries request-scoped values through context. Handlers
// retrieve the manager and request id from the context instead of package
// globals.
package ctxutil

import (
	"context"

	"github.com/modelmux/modelmux/llm"
)

type contextKey int

const (
	managerKey contextKey = iota
	requestIDKey
)

// WithManager attaches the provider manager to ctx.
func WithManager(ctx context.Context, m *llm.Manager) context.Context {
	return context.WithValue(ctx, managerKey, m)
}

// Manager returns the provider manager from ctx, or nil when absent.
func Manager(ctx context.Context) *llm.Manager {
	m, _ := ctx.Value(managerKey).(*llm.Manager)
	return m
}

// WithRequestID attaches a request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id from ctx, or "" when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
