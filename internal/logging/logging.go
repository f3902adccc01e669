package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config describes logger runtime configuration.
type Config struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Output      string `mapstructure:"output"`
	TimeFormat  string `mapstructure:"time_format"`
	Caller      bool   `mapstructure:"caller"`
	PrettyPrint bool   `mapstructure:"pretty"`
}

// NewLogger constructs a zerolog logger tagged with the service name.
// Logs go to stderr unless output is "stdout"; command results own stdout.
func NewLogger(cfg Config, service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	builder := zerolog.New(logWriter(cfg, outputStream(cfg.Output))).Level(level).With().Timestamp()
	if service != "" {
		builder = builder.Str("service", service)
	}
	if cfg.Caller {
		builder = builder.Caller()
	}
	return builder.Logger()
}

func outputStream(name string) io.Writer {
	if strings.EqualFold(strings.TrimSpace(name), "stdout") {
		return os.Stdout
	}
	return os.Stderr
}

func logWriter(cfg Config, out io.Writer) io.Writer {
	if cfg.PrettyPrint || strings.EqualFold(cfg.Format, "console") {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: zerolog.TimeFieldFormat}
	}
	return out
}
