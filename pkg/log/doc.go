// Package log is the logging surface of rollcam for embedders.
//
// Logger and Field are the same types the recorder uses internally, so any
// implementation can be passed to rollcam.WithLogger:
//
//	logger := log.NewZerolog(zerolog.New(os.Stderr).With().Timestamp().Logger())
//	rec, err := rollcam.New(cfg, rollcam.WithLogger(logger))
//
// Discard everything with NewNoop.
package log
