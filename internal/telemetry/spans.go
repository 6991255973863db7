package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StartJobSpan starts a span covering the processing of one queued job.
func StartJobSpan(ctx context.Context, jobID, mediaID string, attempt int) (context.Context, trace.Span) {
	return StartSpan(ctx, "worker.process_job",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("media.id", mediaID),
			attribute.Int("job.attempt", attempt),
		),
	)
}

// StartInferenceSpan starts a span covering one outbound inference call.
func StartInferenceSpan(ctx context.Context, operation, modelKey string) (context.Context, trace.Span) {
	return StartSpan(ctx, "inference."+operation,
		trace.WithAttributes(
			attribute.String("model.key", modelKey),
		),
	)
}
