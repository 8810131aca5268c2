package logging

import (
	"context"
	"log/slog"

	"ffui/internal/services"
)

const (
	// FieldComponent names the subsystem that produced a log line.
	FieldComponent = "component"
	// FieldJobID carries the transcode job identifier.
	FieldJobID = "job_id"
	// FieldBatchID carries the scan batch that enqueued a job.
	FieldBatchID = "batch_id"
	// FieldRequestID correlates daemon log lines with the IPC call that
	// triggered them.
	FieldRequestID = "request_id"
	// FieldEventType is the machine-readable event classification.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step for the operator when something
	// fails.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts the standardized identifiers stamped on ctx by the
// services package.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	var fields []Attr
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, String(FieldJobID, id))
	}
	if id, ok := services.BatchIDFromContext(ctx); ok {
		fields = append(fields, String(FieldBatchID, id))
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, String(FieldRequestID, id))
	}
	return fields
}

// WithContext returns logger carrying every identifier found on ctx, so call
// sites do not repeat job or request ids on each line.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
