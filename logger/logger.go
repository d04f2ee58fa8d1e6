package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type options struct {
	level  string
	pretty bool
	writer io.Writer
}

type Option func(*options)

func WithLevel(level string) Option {
	return func(o *options) { o.level = level }
}

func WithPretty(pretty bool) Option {
	return func(o *options) { o.pretty = pretty }
}

func WithWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.writer = w
		}
	}
}

// New builds the process logger. Every line carries the service name.
func New(service string, opts ...Option) zerolog.Logger {
	if service == "" {
		service = "contractsync"
	}

	o := &options{level: "info", writer: os.Stdout}
	for _, fn := range opts {
		fn(o)
	}

	var w io.Writer = o.writer
	if o.pretty {
		w = prettyWriter(o.writer, service)
	}

	l := zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Logger().
		Level(ParseLevel(o.level))

	return l
}

// ParseLevel maps a config string to a zerolog level; unknown strings mean info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func prettyWriter(out io.Writer, service string) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: time.TimeOnly,
		FormatLevel: func(i interface{}) string {
			return fmt.Sprintf("| %-6s|", strings.ToUpper(fmt.Sprintf("%s", i)))
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("| %-12s| %s", service, i)
		},
		FieldsExclude: []string{"service"},
	}
}

// Nop is a logger that discards everything, for tests and library defaults.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
