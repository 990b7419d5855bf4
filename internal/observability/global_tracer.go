package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName names the tracer, meter and log bridge scope
const instrumentationName = "quiz-audit"

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the application.
func InitGlobalTracer() {
	globalTracer = otel.Tracer(instrumentationName)
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		// Fallback to default tracer if not initialized
		globalTracer = otel.Tracer(instrumentationName)
	}
	return globalTracer
}

// TraceFunction starts a new span with a descriptive name for the given service and function.
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetGlobalTracer()
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceAuditFunction starts a new span for a duplicate audit function.
func TraceAuditFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "audit", functionName, attributes...)
}

// TraceSelectionFunction starts a new span for a question selection function.
func TraceSelectionFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "selection", functionName, attributes...)
}

// TraceCoverageFunction starts a new span for a coverage function.
func TraceCoverageFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "coverage", functionName, attributes...)
}

// TraceLedgerFunction starts a new span for a ledger function.
func TraceLedgerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "ledger", functionName, attributes...)
}

// TraceStoreFunction starts a new span for a document store function.
func TraceStoreFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "store", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// AttributeQuestionID returns a tracing attribute for a question ID.
func AttributeQuestionID(id string) attribute.KeyValue {
	return attribute.String("question.id", id)
}

// AttributeCourseID returns a tracing attribute for a course ID.
func AttributeCourseID(id string) attribute.KeyValue {
	return attribute.String("course.id", id)
}

// AttributeLessonID returns a tracing attribute for a lesson ID.
func AttributeLessonID(id string) attribute.KeyValue {
	return attribute.String("lesson.id", id)
}

// AttributeDifficulty returns a tracing attribute for a difficulty.
func AttributeDifficulty(difficulty interface{}) attribute.KeyValue {
	return attribute.String("difficulty", fmt.Sprintf("%v", difficulty))
}

// AttributeCategory returns a tracing attribute for a category.
func AttributeCategory(category interface{}) attribute.KeyValue {
	return attribute.String("category", fmt.Sprintf("%v", category))
}

// AttributeThreshold returns a tracing attribute for a similarity threshold.
func AttributeThreshold(threshold float64) attribute.KeyValue {
	return attribute.Float64("audit.threshold", threshold)
}

// AttributeLimit returns a tracing attribute for a limit value.
func AttributeLimit(limit int) attribute.KeyValue {
	return attribute.Int("limit", limit)
}

// TraceWorkerFunction starts a new span for a scheduled worker function.
func TraceWorkerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "worker", functionName, attributes...)
}
