package cliconfig

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	logAdapter "github.com/bft-labs/rollcam/internal/adapters/log"
)

// Rotation limits of the log file.
const (
	logMaxSizeMB  = 50
	logMaxBackups = 3
	logMaxAgeDays = 14
)

// Logger builds the process logger: console output on stderr plus, when
// file is set, JSON lines in a rotating log file.
func Logger(level, file string) (zerolog.Logger, io.Closer, error) {
	console := logAdapter.ConsoleWriter(os.Stderr)
	lvl := logAdapter.ParseLevel(level)

	if file == "" {
		return zerolog.New(console).Level(lvl).With().Timestamp().Logger(), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return zerolog.Logger{}, nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   true,
	}
	w := zerolog.MultiLevelWriter(console, rotator)
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), rotator, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
