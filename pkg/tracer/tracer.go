// Package tracer implements the structured observability spine (C1):
// spans, contexts, tags, and structured log records, with pluggable
// backends (JSON, Text, Noop). It is modeled on katana's ProgressTracer —
// OpenTracing-shaped but custom, not a thin wrapper over an OTel SDK
// tracer — while reusing go.opentelemetry.io/otel/trace's TraceID/SpanID
// types and the W3C traceparent propagator for Inject/Extract, so span
// identity remains wire-compatible with real distributed tracing tooling.
//
// Starting and finishing spans must be called from a single goroutine per
// Tracer; logging and tagging an existing span are safe from any goroutine.
package tracer

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/KatanaGraph/katana-sub004/pkg/clock"
)

// Value is a tag or log-field value. The original C++ Value variant
// distinguishes std::string from const char*; Go's single string type makes
// that distinction unnecessary.
type Value any

// Tags is a set of key/value pairs attached to a span or a log
// record. A plain map suffices here: unlike the C++ std::vector<pair<...>>
// original, Go map iteration order is never relied on by callers.
type Tags map[string]Value

// SpanContext carries (trace_id, span_id) across process/thread boundaries.
type SpanContext struct {
	TraceID oteltrace.TraceID
	SpanID  oteltrace.SpanID
}

// GetTraceID returns the hex-encoded trace ID.
func (c SpanContext) GetTraceID() string { return c.TraceID.String() }

// GetSpanID returns the hex-encoded span ID.
func (c SpanContext) GetSpanID() string { return c.SpanID.String() }

func newTraceID() oteltrace.TraceID {
	var id oteltrace.TraceID
	_, _ = rand.Read(id[:])
	return id
}

func newSpanID() oteltrace.SpanID {
	var id oteltrace.SpanID
	_, _ = rand.Read(id[:])
	return id
}

// sink is the backend-specific emission surface a Tracer delegates to.
type sink interface {
	emitStart(s *Span)
	emitSetTags(s *Span, tags Tags)
	emitLog(s *Span, msg string, tags Tags)
	emitFinish(s *Span)
	close() error
}

// Tracer creates and tracks spans. Only one Tracer should be installed per
// process (see SetGlobal/Global); it is typically created at the entry point
// and replaced with a Noop tracer on teardown.
type Tracer struct {
	hostID, numHosts uint32
	sink             sink
	closeExtra       func() error
	clock            clock.Clock

	mu         sync.Mutex // guards activeSpan; start/finish are single-goroutine by contract but this keeps accidental misuse safe
	activeSpan *Span
}

func newTracer(sk sink, hostID, numHosts uint32) *Tracer {
	return &Tracer{sink: sk, hostID: hostID, numHosts: numHosts, clock: clock.NewRealClock()}
}

// WithClock overrides the tracer's time source, for tests that need
// deterministic span durations.
func (t *Tracer) WithClock(c clock.Clock) *Tracer {
	t.clock = c
	return t
}

// StartSpan creates a new span as a child of parent (or a new root span if
// parent is nil). Unlike StartActiveSpan, it does not change the active
// span, which lets callers maintain several concurrently-open spans (e.g.
// for asynchronous property loads).
func (t *Tracer) StartSpan(name string, parent *Span) *Span {
	s := &Span{
		tracer: t,
		name:   name,
		parent: parent,
		tags:   make(Tags),
		start:  t.clock.Now(),
	}
	if parent != nil {
		s.ctx = SpanContext{TraceID: parent.ctx.TraceID, SpanID: newSpanID()}
	} else {
		s.ctx = SpanContext{TraceID: newTraceID(), SpanID: newSpanID()}
	}
	t.sink.emitStart(s)
	return s
}

// StartActiveSpan starts a span that becomes the tracer's active span: a
// child of the current active span if one exists, otherwise a new root
// span. The returned Scope finishes the span when it closes and the span is
// still active (see Scope.Close).
func (t *Tracer) StartActiveSpan(name string) *Scope {
	t.mu.Lock()
	parent := t.activeSpan
	t.mu.Unlock()
	return t.startActiveSpanOf(name, parent)
}

// StartActiveSpanChildOf starts an active span as the child of an explicit
// parent context rather than the tracer's current active span — used when
// resuming a span handed across a process boundary via Inject/Extract.
func (t *Tracer) StartActiveSpanChildOf(name string, parentCtx SpanContext) *Scope {
	s := &Span{tracer: t, name: name, ctx: SpanContext{TraceID: parentCtx.TraceID, SpanID: newSpanID()}, tags: make(Tags), start: t.clock.Now()}
	t.sink.emitStart(s)
	return t.setActive(s)
}

func (t *Tracer) startActiveSpanOf(name string, parent *Span) *Scope {
	s := t.StartSpan(name, parent)
	return t.setActive(s)
}

func (t *Tracer) setActive(s *Span) *Scope {
	t.mu.Lock()
	t.activeSpan = s
	t.mu.Unlock()
	return &Scope{span: s}
}

// GetActiveSpan returns the tracer's current active span. If there is none,
// an unnamed root span is created and becomes active — matching the
// original's "the program is probably not using tracing" fallback.
func (t *Tracer) GetActiveSpan() *Span {
	t.mu.Lock()
	active := t.activeSpan
	t.mu.Unlock()
	if active != nil {
		return active
	}
	scope := t.startActiveSpanOf("", nil)
	return scope.span
}

// HasActiveSpan reports whether the tracer currently has an active span.
func (t *Tracer) HasActiveSpan() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeSpan != nil
}

// FinishActiveSpan finishes the active span; the erstwhile active span's
// parent becomes the new active span.
func (t *Tracer) FinishActiveSpan() {
	t.mu.Lock()
	active := t.activeSpan
	t.mu.Unlock()
	if active == nil {
		return
	}
	active.Finish()
}

// finishedActive is called by Span.Finish when the finishing span is the
// active span; it pops the active span back to the parent.
func (t *Tracer) finishedActive(s *Span) {
	t.mu.Lock()
	if t.activeSpan == s {
		t.activeSpan = s.parent
	}
	t.mu.Unlock()
}

// Inject serializes a SpanContext to a W3C traceparent string.
func (t *Tracer) Inject(ctx SpanContext) string {
	sc := oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    ctx.TraceID,
		SpanID:     ctx.SpanID,
		TraceFlags: oteltrace.FlagsSampled,
	})
	c := oteltrace.ContextWithSpanContext(context.Background(), sc)
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(c, carrier)
	return carrier.Get("traceparent")
}

// Extract parses a traceparent string produced by Inject. It returns an
// error if the carrier does not contain a valid span context.
func (t *Tracer) Extract(carrier string) (*SpanContext, error) {
	c := propagation.MapCarrier{"traceparent": carrier}
	ctx := propagation.TraceContext{}.Extract(context.Background(), c)
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil, fmt.Errorf("tracer: invalid carrier %q", carrier)
	}
	return &SpanContext{TraceID: sc.TraceID(), SpanID: sc.SpanID()}, nil
}

// GetHostID returns this tracer's host ID (for distributed-execution tracing).
func (t *Tracer) GetHostID() uint32 { return t.hostID }

// GetNumHosts returns the number of hosts participating in this trace.
func (t *Tracer) GetNumHosts() uint32 { return t.numHosts }

// Finish closes the active span chain and flushes the sink. It resets the
// tracer's active span.
func (t *Tracer) Finish() {
	t.mu.Lock()
	active := t.activeSpan
	t.activeSpan = nil
	t.mu.Unlock()
	for s := active; s != nil; {
		next := s.parent
		s.Finish()
		s = next
	}
	_ = t.sink.close()
	if t.closeExtra != nil {
		_ = t.closeExtra()
	}
}

// Scope owns a span for its lifetime and closes it on Close/destruction.
// Prefer Scope over raw spans wherever possible: it makes early returns
// (e.g. on error) safe.
type Scope struct {
	span   *Span
	closed bool
}

// Span returns the scope's span. Spans may have tags and logs attached.
func (sc *Scope) Span() *Span { return sc.span }

// Close marks the underlying span as complete. It only finishes the span
// when it is still the tracer's active span — so a parent scope closed
// after its child does not double-finish a span the child already closed.
func (sc *Scope) Close() {
	if sc.closed {
		return
	}
	sc.closed = true
	sc.span.markScopeClosed()
	sc.span.tracer.mu.Lock()
	isActive := sc.span.tracer.activeSpan == sc.span
	sc.span.tracer.mu.Unlock()
	if isActive {
		sc.span.Finish()
	}
}
