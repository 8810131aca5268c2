package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	batchIDKey   contextKey = "batch_id"
	requestIDKey contextKey = "request_id"
)

func withValue(ctx context.Context, key contextKey, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, key, id)
}

func fromContext(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithJobID tags ctx with the transcode job the work belongs to.
func WithJobID(ctx context.Context, id string) context.Context {
	return withValue(ctx, jobIDKey, id)
}

// JobIDFromContext reports the job id attached to ctx, if any.
func JobIDFromContext(ctx context.Context) (string, bool) {
	return fromContext(ctx, jobIDKey)
}

// WithBatchID tags ctx with the scan batch that enqueued the job.
func WithBatchID(ctx context.Context, id string) context.Context {
	return withValue(ctx, batchIDKey, id)
}

// BatchIDFromContext reports the scan batch id attached to ctx, if any.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	return fromContext(ctx, batchIDKey)
}

// WithRequestID tags ctx with a short correlation id for one IPC request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// RequestIDFromContext reports the correlation id attached to ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return fromContext(ctx, requestIDKey)
}
