package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string    `yaml:"level"`
	TimeFormat string    `yaml:"time_format"`
	Pretty     bool      `yaml:"pretty"`
	Output     io.Writer `yaml:"-"` // stderr when nil
}

const (
	serviceName    = "qrpay"
	serviceVersion = "1.0.0"
)

var levelColors = map[string]string{
	"trace": "\033[35m",
	"debug": "\033[36m",
	"info":  "\033[32m",
	"warn":  "\033[33m",
	"error": "\033[31m",
	"fatal": "\033[91m",
	"panic": "\033[91m",
}

func New() zerolog.Logger {
	return NewWithConfig(Config{
		Level:      "info",
		TimeFormat: time.RFC3339,
	})
}

// NewWithConfig builds the process logger. Stdout is left to command output,
// so logs go to stderr unless Output says otherwise.
func NewWithConfig(config Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	var out io.Writer = os.Stderr
	if config.Output != nil {
		// scheduler goroutines log concurrently
		out = zerolog.SyncWriter(config.Output)
	}
	if config.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			FormatLevel: func(i interface{}) string {
				s, _ := i.(string)
				return colorizeLevel(s)
			},
		}
	}

	return zerolog.New(out).With().
		Timestamp().
		Str("service", serviceName).
		Str("version", serviceVersion).
		Logger()
}

func colorizeLevel(level string) string {
	color, ok := levelColors[level]
	if !ok {
		return level
	}
	return color + level + "\033[0m"
}
