package observ

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogConfig controls the process-wide event logger
type LogConfig struct {
	Level  string    `yaml:"level"`  // debug | info | warn | error
	Format string    `yaml:"format"` // json | console
	Output io.Writer `yaml:"-"`
}

var (
	logMu  sync.RWMutex
	logger zerolog.Logger
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger = newLogger(LogConfig{})
}

func newLogger(cfg LogConfig) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// InitLogging replaces the event logger. Safe to call more than once.
func InitLogging(cfg LogConfig) {
	l := newLogger(cfg)
	logMu.Lock()
	logger = l
	logMu.Unlock()
}

// Logger returns the current zerolog logger for callers that need richer fields.
func Logger() *zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	l := logger
	return &l
}

// Log emits an info-level event with the given fields.
func Log(event string, kv map[string]any) {
	emit(Logger().Info(), event, kv)
}

func Debug(event string, kv map[string]any) {
	emit(Logger().Debug(), event, kv)
}

func Warn(event string, kv map[string]any) {
	emit(Logger().Warn(), event, kv)
}

// Error emits an error-level event; err is attached under "error".
func Error(event string, err error, kv map[string]any) {
	emit(Logger().Error().Err(err), event, kv)
}

func emit(e *zerolog.Event, event string, kv map[string]any) {
	if e == nil {
		return
	}
	if len(kv) > 0 {
		e = e.Fields(kv)
	}
	e.Str("event", event).Send()
}
