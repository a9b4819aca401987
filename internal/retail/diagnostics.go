package retail

import "sync"

// Level is the severity of a diagnostic entry.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// Stage names used in diagnostic entries.
const (
	StageLoad      = "load"
	StageQuality   = "quality"
	StageClean     = "clean"
	StageNormalize = "normalize"
	StageValidate  = "validate"
)

// Entry is one diagnostic event emitted by a transform stage.
type Entry struct {
	Stage   string
	Level   Level
	Message string
	Fields  map[string]any
}

// Sink receives diagnostic entries. Implementations must be safe for use by
// a single pipeline run; Collector is additionally safe for concurrent use.
type Sink interface {
	Record(Entry)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Entry)

// Record calls f(e).
func (f SinkFunc) Record(e Entry) { f(e) }

// Discard drops every entry.
var Discard Sink = SinkFunc(func(Entry) {})

// Collector keeps entries in memory.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
}

// Record appends e.
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

// Entries returns a copy of everything recorded so far.
func (c *Collector) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Find returns the entries of stage at level or above. An empty stage
// matches every stage.
func (c *Collector) Find(stage string, min Level) []Entry {
	var out []Entry
	for _, e := range c.Entries() {
		if (stage == "" || e.Stage == stage) && e.Level >= min {
			out = append(out, e)
		}
	}
	return out
}

type emitter struct {
	sink  Sink
	stage string
}

func newEmitter(s Sink, stage string) emitter {
	if s == nil {
		s = Discard
	}
	return emitter{sink: s, stage: stage}
}

func (e emitter) emit(l Level, msg string, fields map[string]any) {
	e.sink.Record(Entry{Stage: e.stage, Level: l, Message: msg, Fields: fields})
}

func (e emitter) info(msg string, fields map[string]any)  { e.emit(LevelInfo, msg, fields) }
func (e emitter) warn(msg string, fields map[string]any)  { e.emit(LevelWarn, msg, fields) }
func (e emitter) debug(msg string, fields map[string]any) { e.emit(LevelDebug, msg, fields) }
