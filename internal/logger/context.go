package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped logging context.
type LogContext struct {
	RequestID   string    // HTTP request id (chi middleware)
	UserID      string    // Authenticated user id
	Notebook    string    // Notebook UUID being processed
	Page        string    // Page UUID being processed
	Destination string    // Destination name (notes, webhook, ...)
	Worker      string    // Sync worker id
	StartTime   time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a request.
func NewLogContext(requestID string) *LogContext {
	return &LogContext{
		RequestID: requestID,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithUser returns a copy with the user id set.
func (lc *LogContext) WithUser(userID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.UserID = userID
	}
	return clone
}

// WithPage returns a copy with notebook and page set.
func (lc *LogContext) WithPage(notebook, page string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Notebook = notebook
		clone.Page = page
	}
	return clone
}

// WithDestination returns a copy with the destination set.
func (lc *LogContext) WithDestination(destination string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Destination = destination
	}
	return clone
}

// WithWorker returns a copy with the worker id set.
func (lc *LogContext) WithWorker(worker string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Worker = worker
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
