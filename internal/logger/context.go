package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds invocation-scoped logging context carried alongside a
// single per-target operation (attach, fsid map, quota query, ...).
type LogContext struct {
	Operation  string    // attach, detach, map, unmap, purge, quota
	Target     string    // target identifier as given on the command line
	MountPoint string    // local attachment point, if any
	UID        uint32    // effective user ID
	StartTime  time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for the given operation
func NewLogContext(operation string) *LogContext {
	return &LogContext{
		Operation: operation,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	out := *lc
	return &out
}

// WithTarget returns a copy with the target set
func (lc *LogContext) WithTarget(target string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Target = target
	}
	return clone
}

// WithMountPoint returns a copy with the mount point set
func (lc *LogContext) WithMountPoint(mountPoint string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.MountPoint = mountPoint
	}
	return clone
}
