// Package telemetry sets up OpenTelemetry tracing. Finished spans are written
// through zerolog so they land in the same stream as the service logs.
package telemetry

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/gosuda/kanban/internal/config"
)

const serviceName = "kanban"

// NewTracerProvider returns the provider selected by cfg, or nil when tracing
// is off. Callers own the provider and must shut it down to flush spans.
func NewTracerProvider(cfg config.TracingConfig, logger zerolog.Logger) *sdktrace.TracerProvider {
	if cfg.Mode != config.TracingLog {
		return nil
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(NewLogExporter(logger)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
}

// LogExporter is a span exporter that writes one log event per span.
type LogExporter struct {
	logger zerolog.Logger

	mu      sync.Mutex
	stopped bool
}

// NewLogExporter creates a LogExporter writing to logger.
func NewLogExporter(logger zerolog.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

// ExportSpans logs spans. Failed spans are logged at warn level, the rest at
// info. Spans exported after Shutdown are dropped.
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return nil
	}

	for _, s := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev := e.logger.Info()
		if s.Status().Code == codes.Error {
			ev = e.logger.Warn().Str("error", s.Status().Description)
		}
		ev = ev.
			Str("trace_id", s.SpanContext().TraceID().String()).
			Str("span_id", s.SpanContext().SpanID().String()).
			Dur("duration", s.EndTime().Sub(s.StartTime()))
		if p := s.Parent(); p.IsValid() {
			ev = ev.Str("parent_span_id", p.SpanID().String())
		}
		attrs := zerolog.Dict()
		for _, kv := range s.Attributes() {
			attrs = attrs.Str(string(kv.Key), kv.Value.Emit())
		}
		ev.Dict("attributes", attrs).Msg("span " + s.Name())
	}
	return nil
}

// Shutdown stops the exporter.
func (e *LogExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	return nil
}
