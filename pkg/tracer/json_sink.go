package tracer

import (
	"io"
	"sync"

	"github.com/KatanaGraph/katana-sub004/pkg/writer"
)

// jsonRecord is one line of NDJSON output, shared by start/tag/log/finish
// events. Unused fields are omitted, matching the compact per-record
// encoding the original JSONTracer emits.
type jsonRecord struct {
	Event     string     `json:"event"`
	TraceID   string     `json:"trace_id"`
	SpanID    string     `json:"span_id"`
	ParentID  string     `json:"parent_id,omitempty"`
	Name      string     `json:"name,omitempty"`
	Message   string     `json:"message,omitempty"`
	Tags      Tags       `json:"tags,omitempty"`
	DurationNS int64     `json:"duration_ns,omitempty"`
	Host      HostStats  `json:"host"`
}

// jsonSink writes one JSON object per line (NDJSON) to an io.Writer, using
// pkg/writer's JSONWriter[T] rather than a bare json.Encoder, guarded by a
// mutex since spans may be tagged/logged from multiple goroutines.
type jsonSink struct {
	mu      sync.Mutex
	w       io.Writer
	enc     *writer.JSONWriter[jsonRecord]
	closer  io.Closer
	forward func(jsonRecord)
}

func newJSONSink(w io.Writer, forward func(jsonRecord)) *jsonSink {
	s := &jsonSink{w: w, enc: writer.NewJSONWriter[jsonRecord](), forward: forward}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *jsonSink) write(rec jsonRecord) {
	rec.Host = currentHostStats()
	s.mu.Lock()
	_ = s.enc.Write(rec, s.w)
	s.mu.Unlock()
	if s.forward != nil {
		s.forward(rec)
	}
}

func (s *jsonSink) emitStart(sp *Span) {
	parent := ""
	if sp.parent != nil {
		parent = sp.parent.ctx.GetSpanID()
	}
	s.write(jsonRecord{Event: "start", TraceID: sp.ctx.GetTraceID(), SpanID: sp.ctx.GetSpanID(), ParentID: parent, Name: sp.name})
}

func (s *jsonSink) emitSetTags(sp *Span, tags Tags) {
	s.write(jsonRecord{Event: "tags", TraceID: sp.ctx.GetTraceID(), SpanID: sp.ctx.GetSpanID(), Tags: tags})
}

func (s *jsonSink) emitLog(sp *Span, msg string, fields Tags) {
	s.write(jsonRecord{Event: "log", TraceID: sp.ctx.GetTraceID(), SpanID: sp.ctx.GetSpanID(), Message: msg, Tags: fields})
}

func (s *jsonSink) emitFinish(sp *Span) {
	s.write(jsonRecord{
		Event:      "finish",
		TraceID:    sp.ctx.GetTraceID(),
		SpanID:     sp.ctx.GetSpanID(),
		Name:       sp.name,
		DurationNS: sp.durationNS(),
	})
}

func (s *jsonSink) close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
