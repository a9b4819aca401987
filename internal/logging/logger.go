// Package logging provides structured logging for retailetl.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"retailetl/internal/retail"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Config holds logging configuration.
type Config struct {
	Level      string
	Pretty     bool
	TimeFormat string
	// Dir, when set, receives a daily log file etl_YYYYMMDD.log in addition
	// to stderr.
	Dir string
}

// DefaultConfig returns default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Pretty:     true,
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global logger. The returned closer releases the log
// file, if any; it is never nil.
func Init(cfg Config) (io.Closer, error) {
	var output io.Writer = os.Stderr

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: timeFormat,
		}
	}

	var closer io.Closer = nopCloser{}
	if cfg.Dir != "" {
		f, err := openDaily(cfg.Dir, time.Now())
		if err != nil {
			return closer, err
		}
		output = zerolog.MultiLevelWriter(output, f)
		closer = f
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	Logger = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
	return closer, nil
}

// FileName returns the daily log file name for t.
func FileName(t time.Time) string {
	return fmt.Sprintf("etl_%s.log", t.Format("20060102"))
}

func openDaily(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	p := filepath.Join(dir, FileName(now))
	f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Debug returns a debug level event.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info returns an info level event.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn returns a warning level event.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error returns an error level event.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Sink forwards transform diagnostics to a zerolog logger, one event per
// entry, with the stage and entry fields attached.
type Sink struct {
	L *zerolog.Logger
}

// NewSink returns a Sink writing to the global logger.
func NewSink() Sink { return Sink{L: &Logger} }

// Record implements retail.Sink.
func (s Sink) Record(e retail.Entry) {
	l := s.L
	if l == nil {
		l = &Logger
	}
	var ev *zerolog.Event
	switch e.Level {
	case retail.LevelDebug:
		ev = l.Debug()
	case retail.LevelWarn:
		ev = l.Warn()
	case retail.LevelError:
		ev = l.Error()
	default:
		ev = l.Info()
	}
	ev.Str("stage", e.Stage).Fields(e.Fields).Msg(e.Message)
}

func init() {
	_, _ = Init(DefaultConfig())
}
