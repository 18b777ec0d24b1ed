// Package logging builds the charmbracelet logger every component receives.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

// Formats accepted by Options.Format.
const (
	FormatAuto   = "auto"
	FormatText   = "text"
	FormatLogfmt = "logfmt"
	FormatJSON   = "json"
)

// Options configures the logger.
type Options struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string
	// Format is auto, text, logfmt or json. Auto picks text on a terminal
	// and logfmt otherwise.
	Format string
	// Output is the writer for log output (default: os.Stderr)
	Output io.Writer
	// Prefix is the component name prefix
	Prefix string
	// TimeFormat is the time format string (default: "2006-01-02 15:04:05")
	TimeFormat string
	// ReportCaller adds file:line to log entries
	ReportCaller bool
}

// DefaultOptions returns the CLI defaults.
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		Format:     FormatAuto,
		Output:     os.Stderr,
		TimeFormat: time.DateTime,
	}
}

// ParseLevel converts a level name. Unknown names are an error so a typo in
// configuration is not silently ignored.
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q (expected: debug, info, warn or error)", level)
	}
}

// ParseFormat validates a format name.
func ParseFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatText, FormatLogfmt, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q (expected: auto, text, logfmt or json)", format)
	}
}

// New creates a logger with the given options. Invalid level or format
// names fall back to info and auto.
func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level, _ := ParseLevel(opts.Level)
	format, err := ParseFormat(opts.Format)
	if err != nil {
		format = FormatAuto
	}
	timeFormat := opts.TimeFormat
	if timeFormat == "" {
		timeFormat = time.DateTime
	}

	return log.NewWithOptions(out, log.Options{
		Level:           level,
		Prefix:          opts.Prefix,
		TimeFormat:      timeFormat,
		ReportCaller:    opts.ReportCaller,
		ReportTimestamp: true,
		Formatter:       formatter(format, out),
	})
}

func formatter(format string, out io.Writer) log.Formatter {
	switch format {
	case FormatText:
		return log.TextFormatter
	case FormatLogfmt:
		return log.LogfmtFormatter
	case FormatJSON:
		return log.JSONFormatter
	}
	if isTerminal(out) {
		return log.TextFormatter
	}
	return log.LogfmtFormatter
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
