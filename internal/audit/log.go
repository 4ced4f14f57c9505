package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"optibid.com/internal/auth"
	"optibid.com/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Logger writes audit entries as structured log lines tagged type=audit.
type Logger struct {
	log *zap.Logger
}

// New returns an audit logger writing to l, or to the process logger when l is nil.
func New(l *zap.Logger) *Logger {
	if l == nil {
		l = obs.Logger()
	}
	return &Logger{log: l.Named("audit")}
}

// LogEvent writes an audit log entry enriched with request and user context.
// Callers must never put secrets in fields.
func (a *Logger) LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	zf := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", event),
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		zf = append(zf, zap.String("request_id", rid))
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		zf = append(zf, zap.String("user_id", userID))
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	zf = append(zf, zap.Any("fields", copyFields))

	a.log.Info(event, zf...)
	return nil
}

var _ auth.AuditSink = (*Logger)(nil)
