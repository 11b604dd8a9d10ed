package normalize

import (
	"sync"

	"doordashboard/internal/log"
)

// Reasons attached to diagnostics.
const (
	ReasonMalformedValue    = "malformed_value"
	ReasonShapeConflict     = "shape_conflict"
	ReasonNonObjectDelivery = "non_object_delivery"
	ReasonNonObjectSession  = "non_object_session"
	ReasonMissingDeliveries = "missing_deliveries"
	ReasonStoreUnavailable  = "store_unavailable"
)

// Diagnostic describes one default substitution made while normalizing.
type Diagnostic struct {
	Index  int
	Field  string
	Reason string
	Detail string
}

// Sink receives diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Diagnostic)

func (f SinkFunc) Report(d Diagnostic) { f(d) }

// Discard drops every diagnostic.
var Discard Sink = SinkFunc(func(Diagnostic) {})

// LogSink writes diagnostics as warnings.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger.WithComponent(log.ComponentNormalize)}
}

func (s *LogSink) Report(d Diagnostic) {
	s.logger.Warn("Defaulted value during normalization",
		log.FieldSessionIndex, d.Index,
		log.FieldField, d.Field,
		log.FieldReason, d.Reason,
		"detail", d.Detail,
	)
}

// Multi fans a diagnostic out to several sinks.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(d Diagnostic) {
		for _, s := range sinks {
			if s != nil {
				s.Report(d)
			}
		}
	})
}

// Recorder keeps diagnostics in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Diagnostic
}

func (r *Recorder) Report(d Diagnostic) {
	r.mu.Lock()
	r.items = append(r.items, d)
	r.mu.Unlock()
}

// Diagnostics returns a copy of everything recorded so far.
func (r *Recorder) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Diagnostic, len(r.items))
	copy(out, r.items)
	return out
}
