package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// LogFormat selects StructuredLogger's rendering.
type LogFormat string

const (
	// LogFormatJSON emits one JSON object per line, for log aggregation.
	LogFormatJSON LogFormat = "json"
	// LogFormatText emits a human-readable line, for local development.
	LogFormatText LogFormat = "text"
)

// StructuredLogger is the production Logger implementation, grounded on
// the teacher's ProductionLogger in core/config.go: either JSON lines or a
// readable line, written with nothing but encoding/json and fmt. The
// teacher never reaches for a third-party logging library anywhere in the
// corpus (see DESIGN.md), so neither does this.
type StructuredLogger struct {
	component string
	service   string
	format    LogFormat
	debug     bool
	output    io.Writer
}

// NewStructuredLogger creates a root logger for serviceName. debug enables
// Debug-level output; format chooses JSON vs text rendering.
func NewStructuredLogger(serviceName string, format LogFormat, debug bool) *StructuredLogger {
	return &StructuredLogger{
		service: serviceName,
		format:  format,
		debug:   debug,
		output:  os.Stdout,
	}
}

// WithComponent returns a logger that tags every line with component,
// sharing the same output/format/service configuration.
func (l *StructuredLogger) WithComponent(component string) Logger {
	cp := *l
	cp.component = component
	return &cp
}

func (l *StructuredLogger) Info(msg string, fields map[string]interface{}) {
	l.logEvent(context.Background(), "INFO", msg, fields)
}

func (l *StructuredLogger) Warn(msg string, fields map[string]interface{}) {
	l.logEvent(context.Background(), "WARN", msg, fields)
}

func (l *StructuredLogger) Error(msg string, fields map[string]interface{}) {
	l.logEvent(context.Background(), "ERROR", msg, fields)
}

func (l *StructuredLogger) Debug(msg string, fields map[string]interface{}) {
	if l.debug {
		l.logEvent(context.Background(), "DEBUG", msg, fields)
	}
}

func (l *StructuredLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logEvent(ctx, "INFO", msg, fields)
}

func (l *StructuredLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logEvent(ctx, "WARN", msg, fields)
}

func (l *StructuredLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logEvent(ctx, "ERROR", msg, fields)
}

func (l *StructuredLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if l.debug {
		l.logEvent(ctx, "DEBUG", msg, fields)
	}
}

func (l *StructuredLogger) logEvent(ctx context.Context, level, msg string, fields map[string]interface{}) {
	timestamp := time.Now().Format(time.RFC3339)

	if l.format == LogFormatJSON {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   l.service,
			"message":   msg,
		}
		if l.component != "" {
			entry["component"] = l.component
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.output, string(data))
		}
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]", timestamp, level)
	if l.service != "" {
		fmt.Fprintf(&b, " [%s]", l.service)
	}
	if l.component != "" {
		fmt.Fprintf(&b, " (%s)", l.component)
	}
	fmt.Fprintf(&b, " %s", msg)
	for k, v := range fields {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	fmt.Fprintln(l.output, b.String())
}

var _ ComponentAwareLogger = (*StructuredLogger)(nil)
