// Package logging builds the zap logger used across foundryd. Output
// goes to stdout, to the OpenTelemetry log pipeline through the
// otelzap bridge, or both.
package logging

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`

	Stdout bool `koanf:"stdout"`

	// OTEL forwards records to the OTLP log exporter. Requires a
	// logger provider at construction time.
	OTEL bool `koanf:"otel"`
}

// DefaultConfig returns a stdout-only JSON configuration at info level.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Stdout: true}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("format must be json or console, got %q", c.Format)
	}
	if !c.Stdout && !c.OTEL {
		return errors.New("at least one output must be enabled")
	}
	return nil
}

// ParseLevel converts a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// New creates a zap logger from config. otelProvider may be nil, in
// which case the OTEL output is skipped even when enabled.
func New(cfg Config, otelProvider log.LoggerProvider) (*zap.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	level, _ := ParseLevel(cfg.Level)

	cores := make([]zapcore.Core, 0, 2)
	if cfg.Stdout {
		writer := zapcore.AddSync(os.Stdout)
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.Format), writer, level))
	}
	if cfg.OTEL && otelProvider != nil {
		cores = append(cores, otelzap.NewCore("foundryd",
			otelzap.WithLoggerProvider(otelProvider),
		))
	}
	if len(cores) == 0 {
		return nil, errors.New("no log output available")
	}

	core := cores[0]
	if len(cores) > 1 {
		core = zapcore.NewTee(cores...)
	}

	return zap.New(core, zap.AddCaller()), nil
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// Sync flushes the logger, ignoring the errors stdout and stderr
// return for fsync on Linux.
func Sync(logger *zap.Logger) error {
	err := logger.Sync()
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}
