package tracer

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// textSink renders each event as a single human-readable line, the way the
// original TextTracer writes to stderr for local/interactive runs.
type textSink struct {
	mu sync.Mutex
	w  io.Writer
}

func newTextSink(w io.Writer) *textSink {
	return &textSink{w: w}
}

func formatTags(tags Tags) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += fmt.Sprintf(" %s=%v", k, tags[k])
	}
	return out
}

func (s *textSink) line(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format+"\n", args...)
}

func (s *textSink) emitStart(sp *Span) {
	s.line("[%s/%s] START %s", sp.ctx.GetTraceID(), sp.ctx.GetSpanID(), sp.name)
}

func (s *textSink) emitSetTags(sp *Span, tags Tags) {
	s.line("[%s/%s] TAGS%s", sp.ctx.GetTraceID(), sp.ctx.GetSpanID(), formatTags(tags))
}

func (s *textSink) emitLog(sp *Span, msg string, fields Tags) {
	s.line("[%s/%s] LOG %s%s", sp.ctx.GetTraceID(), sp.ctx.GetSpanID(), msg, formatTags(fields))
}

func (s *textSink) emitFinish(sp *Span) {
	s.line("[%s/%s] FINISH %s (%dns)", sp.ctx.GetTraceID(), sp.ctx.GetSpanID(), sp.name, sp.durationNS())
}

func (s *textSink) close() error { return nil }

// noopSink discards every event; used when tracing is disabled.
type noopSink struct{}

func (noopSink) emitStart(*Span)            {}
func (noopSink) emitSetTags(*Span, Tags)    {}
func (noopSink) emitLog(*Span, string, Tags) {}
func (noopSink) emitFinish(*Span)           {}
func (noopSink) close() error               { return nil }
