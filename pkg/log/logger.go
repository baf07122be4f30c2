package log

import (
	"time"

	"github.com/rs/zerolog"

	logAdapter "github.com/bft-labs/rollcam/internal/adapters/log"
	"github.com/bft-labs/rollcam/internal/ports"
)

// Logger provides structured logging at four levels.
type Logger = ports.Logger

// Field is a key-value pair attached to a log message.
type Field = ports.Field

func String(key, value string) Field          { return ports.String(key, value) }
func Int(key string, value int) Field         { return ports.Int(key, value) }
func Int64(key string, value int64) Field     { return ports.Int64(key, value) }
func Uint64(key string, value uint64) Field   { return ports.Uint64(key, value) }
func Float64(key string, value float64) Field { return ports.Float64(key, value) }
func Bool(key string, value bool) Field       { return ports.Bool(key, value) }
func Duration(key string, value time.Duration) Field {
	return ports.Duration(key, value)
}
func Time(key string, value time.Time) Field { return ports.Time(key, value) }

// Err creates an error field with key "error".
func Err(err error) Field { return ports.Err(err) }

func Any(key string, value interface{}) Field { return ports.Any(key, value) }

// NewZerolog wraps a zerolog.Logger.
func NewZerolog(logger zerolog.Logger) Logger {
	return logAdapter.NewZerologAdapterWithLogger(logger)
}

// NewNoop returns a Logger that discards all messages.
func NewNoop() Logger {
	return logAdapter.NewNoopLogger()
}
