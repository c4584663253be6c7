package tracer

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/KatanaGraph/katana-sub004/pkg/telemetry"
)

// otlpForwarder mirrors spans emitted by the JSON backend into a real OTel
// SDK tracer, so a JSONTracer can double as the source of truth for an
// OTLP collector when OTEL_ENABLED=true. It is optional: when telemetry is
// disabled, Init returns a no-op shutdown and forwarding becomes a cheap
// no-op too, so JSONTracer callers never need to branch on whether an
// exporter is actually configured.
type otlpForwarder struct {
	tr       oteltrace.Tracer
	shutdown telemetry.ShutdownFunc

	mu    sync.Mutex
	spans map[string]oteltrace.Span // keyed by this tracer's hex span ID
}

func newOTLPForwarder(ctx context.Context) (*otlpForwarder, error) {
	shutdown, err := telemetry.Init(ctx)
	if err != nil {
		return nil, err
	}
	return &otlpForwarder{
		tr:       otel.Tracer("katana-runtime"),
		shutdown: shutdown,
		spans:    make(map[string]oteltrace.Span),
	}, nil
}

func (f *otlpForwarder) forward(rec jsonRecord) {
	if f == nil {
		return
	}
	switch rec.Event {
	case "start":
		sc := oteltrace.NewSpanContext(oteltrace.SpanContextConfig{TraceFlags: oteltrace.FlagsSampled})
		ctx := oteltrace.ContextWithSpanContext(context.Background(), sc)
		_, span := f.tr.Start(ctx, rec.Name)
		f.mu.Lock()
		f.spans[rec.SpanID] = span
		f.mu.Unlock()
	case "finish":
		f.mu.Lock()
		span := f.spans[rec.SpanID]
		delete(f.spans, rec.SpanID)
		f.mu.Unlock()
		if span != nil {
			span.End()
		}
	}
}

func (f *otlpForwarder) close(ctx context.Context) error {
	if f == nil || f.shutdown == nil {
		return nil
	}
	return f.shutdown(ctx)
}
