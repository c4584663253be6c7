package tracer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Span is a single unit of traced work. Spans form a tree via parent
// pointers; Finish is idempotent, matching ProgressSpan's contract that a
// span may be finished exactly once but callers are not required to track
// whether they already did so.
type Span struct {
	tracer *Tracer
	name   string
	parent *Span
	ctx    SpanContext

	start time.Time

	mu   sync.Mutex
	tags Tags

	finished    atomic.Bool
	scopeClosed atomic.Bool
}

// Context returns the span's (trace_id, span_id) pair.
func (s *Span) Context() SpanContext { return s.ctx }

// Parent returns the span's parent, or nil for a root span.
func (s *Span) Parent() *Span { return s.parent }

// Name returns the span's operation name.
func (s *Span) Name() string { return s.name }

// SetTag attaches a key/value tag to the span. Safe to call concurrently
// with Log/SetTag from other goroutines holding the same *Span.
func (s *Span) SetTag(key string, value Value) *Span {
	if s.finished.Load() {
		return s
	}
	s.mu.Lock()
	s.tags[key] = value
	s.mu.Unlock()
	s.tracer.sink.emitSetTags(s, Tags{key: value})
	return s
}

// SetTags attaches several tags at once.
func (s *Span) SetTags(tags Tags) *Span {
	if s.finished.Load() {
		return s
	}
	s.mu.Lock()
	for k, v := range tags {
		s.tags[k] = v
	}
	s.mu.Unlock()
	s.tracer.sink.emitSetTags(s, tags)
	return s
}

// Log records a structured log line against the span. The JSON backend
// attaches the process's host stats (see HostStats) to each record.
func (s *Span) Log(msg string, fields Tags) *Span {
	if s.finished.Load() {
		return s
	}
	s.tracer.sink.emitLog(s, msg, fields)
	return s
}

// LogError records an error against the span as a log entry tagged
// error=true, matching the "error" OpenTracing log convention.
func (s *Span) LogError(err error) *Span {
	if err == nil {
		return s
	}
	fields := Tags{"error": true, "message": err.Error()}
	return s.Log("error", fields)
}

// LogMemoryStats records the resource-usage bundle (RSS and available
// memory) a caller has already sampled — e.g. via pkg/memprobe —
// as a single structured log entry. This mirrors ProgressTracer's
// HostStats()-on-every-log behavior without coupling this package to a
// concrete memory source.
func (s *Span) LogMemoryStats(rssBytes, availableBytes int64) *Span {
	return s.Log("memory_stats", Tags{
		"rss_bytes":       rssBytes,
		"available_bytes": availableBytes,
	})
}

func (s *Span) markScopeClosed() { s.scopeClosed.Store(true) }

// Finish marks the span complete. It is idempotent: subsequent calls are
// no-ops. Finishing a span that is the tracer's active span pops the active
// span back to its parent.
func (s *Span) Finish() {
	if !s.finished.CompareAndSwap(false, true) {
		return
	}
	s.tracer.sink.emitFinish(s)
	s.tracer.finishedActive(s)
}

// Finished reports whether Finish has already been called.
func (s *Span) Finished() bool { return s.finished.Load() }

// durationNS returns the elapsed time since the span started, in
// nanoseconds, for inclusion in a finish record.
func (s *Span) durationNS() int64 { return s.tracer.clock.Since(s.start).Nanoseconds() }
