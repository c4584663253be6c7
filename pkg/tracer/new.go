package tracer

import (
	"context"
	"io"
	"sync"
)

// NewJSON creates a Tracer that emits newline-delimited JSON records to w.
// If OTEL_ENABLED=true is set in the environment, every emitted span is also
// forwarded to a real OTel SDK tracer configured from OTEL_* variables (see
// pkg/telemetry); forwarding is a no-op otherwise.
func NewJSON(ctx context.Context, w io.Writer, hostID, numHosts uint32) (*Tracer, error) {
	fwd, err := newOTLPForwarder(ctx)
	if err != nil {
		return nil, err
	}
	sink := newJSONSink(w, fwd.forward)
	t := newTracer(sink, hostID, numHosts)
	t.closeExtra = func() error { return fwd.close(context.Background()) }
	return t, nil
}

// NewText creates a Tracer that writes one human-readable line per event to
// w — the default for interactive CLI runs.
func NewText(w io.Writer, hostID, numHosts uint32) *Tracer {
	return newTracer(newTextSink(w), hostID, numHosts)
}

// NewNoop creates a Tracer that discards every event. This is the default
// tracer when no tracing backend has been configured, so instrumented code
// never needs a nil check.
func NewNoop() *Tracer {
	return newTracer(noopSink{}, 0, 1)
}

var (
	globalMu     sync.RWMutex
	globalTracer = NewNoop()
)

// SetGlobal installs t as the process-wide default tracer.
func SetGlobal(t *Tracer) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalTracer = t
}

// Global returns the process-wide default tracer, a Noop tracer until
// SetGlobal is called.
func Global() *Tracer {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalTracer
}
