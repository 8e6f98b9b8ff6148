package telemetry

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// logLevels are the accepted LoggingConfig.Level values.
var logLevels = map[string]zerolog.Level{
	"trace": zerolog.TraceLevel,
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
	"fatal": zerolog.FatalLevel,
}

// Logger is a zerolog logger plus the run, patch and entity field helpers
// used across commands. The zero value is not usable; see NewNopLogger.
type Logger struct {
	zlog   zerolog.Logger
	config LoggingConfig
	closer io.Closer
}

type loggerContextKey struct{}

// NewLogger opens cfg.Output ("stdout", "stderr" or a file path appended
// to) and builds a logger on it.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	out, closer, err := openLogOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	l := NewWriterLogger(out, cfg)
	l.closer = closer
	return l, nil
}

// NewWriterLogger builds a logger that writes to w.
func NewWriterLogger(w io.Writer, cfg LoggingConfig) *Logger {
	if cfg.Format == "console" {
		w = consoleWriter(w, cfg.TimeFormat)
	}

	level, ok := logLevels[cfg.Level]
	if !ok {
		level = zerolog.InfoLevel
	}

	zctx := zerolog.New(w).Level(level).With().Timestamp()
	if cfg.EnableCaller {
		zctx = zctx.Caller()
	}
	zlog := zctx.Logger()
	if cfg.EnableSampling {
		zlog = zlog.Sample(tickSampler(cfg.SamplingInitial, cfg.SamplingThereafter))
	}

	setTimeFieldFormat(cfg.TimeFormat)
	return &Logger{zlog: zlog, config: cfg}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

func openLogOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr", "":
		return os.Stderr, nil, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

func consoleWriter(w io.Writer, timeFormat string) zerolog.ConsoleWriter {
	layout := time.RFC3339
	switch timeFormat {
	case "unix":
		layout = "unix"
	case "kitchen":
		layout = time.Kitchen
	}
	// Colour only on a terminal-like stream.
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: layout,
		NoColor:    w != os.Stdout && w != os.Stderr,
	}
}

// setTimeFieldFormat applies the JSON timestamp layout. zerolog keeps it
// as package state, so the last logger built wins.
func setTimeFieldFormat(timeFormat string) {
	switch timeFormat {
	case "unix":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	case "unixms":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	default:
		zerolog.TimeFieldFormat = time.RFC3339
	}
}

// tickSampler lets a burst of trace and debug lines through each second,
// then one in every thereafter. Info and above are never sampled.
func tickSampler(burst, thereafter int) zerolog.Sampler {
	next := func() zerolog.Sampler {
		return &zerolog.BurstSampler{
			Burst:       uint32(burst),
			Period:      time.Second,
			NextSampler: &zerolog.BasicSampler{N: uint32(thereafter)},
		}
	}
	return zerolog.LevelSampler{TraceSampler: next(), DebugSampler: next()}
}

// Zerolog returns the underlying logger for packages that take a zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// WithContext stores l in ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext returns the logger stored in ctx, or a plain stderr logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zlog: zerolog.New(os.Stderr).With().Timestamp().Logger()}
}

func (l *Logger) derive(zctx zerolog.Context) *Logger {
	return &Logger{zlog: zctx.Logger(), config: l.config}
}

// NewComponentLogger tags every line with component.
func (l *Logger) NewComponentLogger(component string) *Logger {
	return l.derive(l.zlog.With().Str("component", component))
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.derive(l.zlog.With().Interface(key, value))
}

func (l *Logger) WithRunID(runID string) *Logger {
	return l.derive(l.zlog.With().Str("run_id", runID))
}

func (l *Logger) WithPatchID(patchID string) *Logger {
	return l.derive(l.zlog.With().Str("patch_id", patchID))
}

func (l *Logger) WithEntity(entity string) *Logger {
	return l.derive(l.zlog.With().Str("entity", entity))
}

func (l *Logger) WithError(err error) *Logger {
	return l.derive(l.zlog.With().Err(err))
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.zlog.Debug().Msgf(format, args...) }

func (l *Logger) Info(msg string) { l.zlog.Info().Msg(msg) }
func (l *Logger) Infof(format string, args ...interface{}) { l.zlog.Info().Msgf(format, args...) }

func (l *Logger) Warn(msg string) { l.zlog.Warn().Msg(msg) }
func (l *Logger) Warnf(format string, args ...interface{}) { l.zlog.Warn().Msgf(format, args...) }

func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.zlog.Error().Msgf(format, args...) }
