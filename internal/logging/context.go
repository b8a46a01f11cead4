package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldActionID is the structured logging key for the session action id.
	FieldActionID = "action_id"
	// FieldPersonID is the structured logging key for the session person id.
	FieldPersonID = "person_id"
	// FieldShotID is the structured logging key for the session shot id.
	FieldShotID = "shot_id"
	// FieldModality is the structured logging key for the sensor modality name.
	FieldModality = "modality"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	sessionKey contextKey = iota
	requestKey
)

type sessionFields struct {
	action, person, shot int
}

// WithSession attaches a session identity to ctx for log enrichment.
func WithSession(ctx context.Context, action, person, shot int) context.Context {
	return context.WithValue(ctx, sessionKey, sessionFields{action: action, person: person, shot: shot})
}

// SessionFromContext returns the session identity stored by WithSession.
func SessionFromContext(ctx context.Context) (action, person, shot int, ok bool) {
	if ctx == nil {
		return 0, 0, 0, false
	}
	fields, ok := ctx.Value(sessionKey).(sessionFields)
	if !ok {
		return 0, 0, 0, false
	}
	return fields.action, fields.person, fields.shot, true
}

// WithRequestID attaches an IPC request identifier to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestKey, id)
}

// RequestIDFromContext returns the identifier stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestKey).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if action, person, shot, ok := SessionFromContext(ctx); ok {
		fields = append(fields,
			slog.Int(FieldActionID, action),
			slog.Int(FieldPersonID, person),
			slog.Int(FieldShotID, shot),
		)
	}
	if rid, ok := RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
