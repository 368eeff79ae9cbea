package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// ConsoleOptions holds configuration for console logging.
type ConsoleOptions struct {
	Level           log.Level
	Formatter       log.Formatter
	ReportTimestamp bool
	ReportCaller    bool
	Prefix          string
}

// DefaultConsoleOptions returns default options for console logging.
func DefaultConsoleOptions() ConsoleOptions {
	return ConsoleOptions{
		Level:     log.InfoLevel,
		Formatter: log.TextFormatter,
		Prefix:    "clear",
	}
}

// NewConsoleLogger creates a charmbracelet logger writing to stderr.
func NewConsoleLogger(opts ConsoleOptions) *log.Logger {
	return NewConsoleLoggerTo(os.Stderr, opts)
}

// NewConsoleLoggerTo creates a charmbracelet logger writing to w.
func NewConsoleLoggerTo(w io.Writer, opts ConsoleOptions) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           opts.Level,
		Formatter:       opts.Formatter,
		ReportTimestamp: opts.ReportTimestamp,
		ReportCaller:    opts.ReportCaller,
		Prefix:          opts.Prefix,
	})
}

// NewConsoleLoggerFromConfig creates a console logger from string configuration values.
func NewConsoleLoggerFromConfig(level, format string, timestamps, caller bool) *log.Logger {
	opts := DefaultConsoleOptions()
	opts.Level = ParseLogLevel(level)
	opts.Formatter = ParseLogFormatter(format)
	opts.ReportTimestamp = timestamps
	opts.ReportCaller = caller
	return NewConsoleLogger(opts)
}

// ParseLogLevel parses a string log level to a charmbracelet/log Level.
func ParseLogLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// ParseLogFormatter parses a string formatter name to a charmbracelet/log Formatter.
func ParseLogFormatter(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// ConsoleWriter renders run events through a charmbracelet logger.
type ConsoleWriter struct {
	logger *log.Logger
}

// NewConsoleWriter creates a console event writer.
func NewConsoleWriter(logger *log.Logger) *ConsoleWriter {
	if logger == nil {
		logger = log.Default()
	}
	return &ConsoleWriter{logger: logger}
}

// Write logs an event at a level matching its type.
func (c *ConsoleWriter) Write(event Event) error {
	msg := formatMessage(event)
	fields := extractFields(event)

	switch {
	case event.Type == EventError:
		c.logger.Error(msg, fields...)
	case event.Type == EventTask && event.Status != "ok":
		c.logger.Warn(msg, fields...)
	case event.Type == EventTask:
		c.logger.Debug(msg, fields...)
	default:
		c.logger.Info(msg, fields...)
	}
	return nil
}

func extractFields(event Event) []any {
	var fields []any
	if event.Stage != "" {
		fields = append(fields, "stage", event.Stage)
	}
	if event.TaskID != "" {
		fields = append(fields, "id", event.TaskID)
	}
	if event.Status != "" {
		fields = append(fields, "status", event.Status)
	}
	if event.Total != 0 {
		fields = append(fields, "total", event.Total)
	}
	if event.Failed != 0 {
		fields = append(fields, "failed", event.Failed)
	}
	if event.DurationMS != 0 {
		fields = append(fields, "ms", event.DurationMS)
	}
	return fields
}

func formatMessage(event Event) string {
	if event.Content != "" {
		return event.Content
	}
	switch event.Type {
	case EventRunStart:
		return "Run started"
	case EventRunEnd:
		return "Run finished"
	case EventStageStart:
		return "Stage started"
	case EventStageEnd:
		return "Stage finished"
	case EventTask:
		if event.Status == "ok" {
			return "Task completed"
		}
		return "Task failed"
	case EventError:
		return "Error"
	default:
		return event.Type
	}
}
