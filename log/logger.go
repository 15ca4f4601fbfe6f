package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes leveled, optionally-JSON log lines to stdout and/or a
// rotated log file. One Logger is created per mount; Named derives
// per-component children (e.g. "adapter", "blobstore", "metacache") that
// share the same sinks.
type Logger struct {
	writer io.Writer

	Name   string
	Level  Level
	Fields []Field

	TimeFormat string
	File       string
	NoColor    bool
	JSON       bool
	NoTerminal bool
	Rotation   *Rotation
}

// Field is a single structured key/value pair attached to a logger or a
// single log call.
type Field struct {
	Key   string
	Value any
}

func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Rotation configures lumberjack-backed file rotation for the file sink.
type Rotation struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type logEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// New creates a root Logger. file == "" disables file rotation.
func New(name string, level Level, file string, noTerminal bool) *Logger {
	l := &Logger{
		Name:       name,
		Level:      level,
		File:       file,
		NoTerminal: noTerminal,

		TimeFormat: "2006-01-02 15:04:05",
		Rotation: &Rotation{
			MaxSize:    128,
			MaxBackups: 5,
			MaxAge:     16,
			Compress:   false,
		},
	}

	l.setupWriter()

	return l
}

func (l *Logger) setupWriter() {
	var writers []io.Writer

	if !l.NoTerminal {
		writers = append(writers, os.Stdout)
	}

	if l.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   l.File,
			MaxSize:    l.Rotation.MaxSize,
			MaxBackups: l.Rotation.MaxBackups,
			MaxAge:     l.Rotation.MaxAge,
			Compress:   l.Rotation.Compress,
		})
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	l.writer = io.MultiWriter(writers...)
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	if level < l.Level {
		return
	}

	timestamp := time.Now().Format(l.TimeFormat)
	all := append(append([]Field{}, l.Fields...), fields...)

	if l.JSON {
		entry := logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Component: l.Name,
			Message:   msg,
		}
		if len(all) > 0 {
			entry.Fields = make(map[string]any, len(all))
			for _, f := range all {
				entry.Fields[f.Key] = f.Value
			}
		}

		jsonBytes, _ := json.Marshal(entry)
		fmt.Fprintf(l.writer, "%s\n", jsonBytes)
	} else {
		prefix := fmt.Sprintf("[%s] %-5s", timestamp, level)
		if l.Name != "" {
			prefix = fmt.Sprintf("%s [%s]", prefix, l.Name)
		}

		var fields string
		if len(all) > 0 {
			parts := make([]string, len(all))
			for i, f := range all {
				parts[i] = fmt.Sprintf("%s=%v", f.Key, f.Value)
			}
			fields = strings.Join(parts, " ")
		}

		if !l.NoTerminal && !l.NoColor {
			// Prefix and message take the level's color; trailing fields
			// are dimmed so a long argument list doesn't compete with
			// the message for attention.
			line := fmt.Sprintf("%s%s %s%s", Color(level), prefix, msg, resetColor)
			if fields != "" {
				line = fmt.Sprintf("%s %s%s%s", line, fieldColor, fields, resetColor)
			}
			fmt.Fprintf(l.writer, "%s\n", line)
		} else {
			line := fmt.Sprintf("%s %s", prefix, msg)
			if fields != "" {
				line = fmt.Sprintf("%s %s", line, fields)
			}
			fmt.Fprintf(l.writer, "%s\n", line)
		}
	}

	if level == Fatal {
		os.Exit(1)
	}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(Debug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(Info, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(Warn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(Error, msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.log(Fatal, msg, fields...) }

// Named derives a child logger scoped to a component, sharing sinks and
// level with the parent.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		writer: l.writer,

		Name:   fmt.Sprintf("%s/%s", l.Name, name),
		Level:  l.Level,
		Fields: l.Fields,

		TimeFormat: l.TimeFormat,
		File:       l.File,
		NoColor:    l.NoColor,
		NoTerminal: l.NoTerminal,
		JSON:       l.JSON,
		Rotation:   l.Rotation,
	}
}

// With returns a child logger with additional fields attached to every
// subsequent log call.
func (l *Logger) With(fields ...Field) *Logger {
	child := *l
	child.Fields = append(append([]Field{}, l.Fields...), fields...)
	return &child
}
