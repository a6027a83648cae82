// package shared defines shared helpers
package shared

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewLoggerFromConfig builds the process logger from the [log] config section.
//
// Format "auto" selects the text formatter when w is a terminal and JSON otherwise.
func NewLoggerFromConfig(w io.Writer, cfg LogConfig) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := NewLogger(w)

	switch resolveFormat(w, cfg.Format) {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	default:
		logger.SetFormatter(log.TextFormatter)
		logger.SetStyles(levelStyles())
	}

	if level, err := log.ParseLevel(cfg.Level); err == nil {
		SetLogLevel(logger, level)
	}
	return logger
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

func resolveFormat(w io.Writer, format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "" && format != "auto" {
		return format
	}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return "text"
	}
	return "json"
}

func levelStyles() *log.Styles {
	styles := log.DefaultStyles()
	badge := func(label, color string) lipgloss.Style {
		return lipgloss.NewStyle().
			SetString(label).
			Padding(0, 1).
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color(color))
	}
	styles.Levels[log.DebugLevel] = badge("DEBUG", "63")
	styles.Levels[log.InfoLevel] = badge("INFO", "86")
	styles.Levels[log.WarnLevel] = badge("WARN", "192")
	styles.Levels[log.ErrorLevel] = badge("ERROR", "204")
	styles.Levels[log.FatalLevel] = badge("FATAL", "134")
	styles.Keys["item"] = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	styles.Keys["err"] = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	return styles
}
