// Package log provides the leveled, printf-style logger shared by the
// filesystem layer and the store implementations.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	writer io.Writer

	Name  string
	Level Level

	TimeFormat string
	NoColor    bool
	JSON       bool
}

// Rotation configures log-file rotation when logging to a file.
type Rotation struct {
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

type entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
}

// New creates a logger writing to stdout.
func New(name string, level Level) *Logger {
	return &Logger{
		writer:     os.Stdout,
		Name:       name,
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05",
	}
}

// NewFile creates a logger writing to a rotated file instead of stdout.
func NewFile(name string, level Level, file string, rotation Rotation) *Logger {
	if rotation.MaxSize == 0 {
		rotation = Rotation{MaxSize: 128, MaxBackups: 5, MaxAge: 16}
	}

	return &Logger{
		writer: &lumberjack.Logger{
			Filename:   file,
			MaxSize:    rotation.MaxSize,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAge,
			Compress:   rotation.Compress,
		},
		Name:       name,
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
}

// Discard returns a logger that drops everything. Used as the default when
// no logger is configured.
func Discard() *Logger {
	return &Logger{writer: io.Discard, Level: Error + 1}
}

// Named returns a sub-logger sharing the writer with a suffixed name.
func (l *Logger) Named(name string) *Logger {
	sub := *l
	if l.Name != "" {
		sub.Name = fmt.Sprintf("%s/%s", l.Name, name)
	} else {
		sub.Name = name
	}
	return &sub
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if level < l.Level {
		return
	}

	timestamp := time.Now().Format(l.TimeFormat)
	formatted := fmt.Sprintf(msg, args...)

	if l.JSON {
		e := entry{
			Timestamp: timestamp,
			Level:     level.String(),
			Component: l.Name,
			Message:   formatted,
		}
		raw, _ := json.Marshal(e)
		fmt.Fprintf(l.writer, "%s\n", raw)
		return
	}

	prefix := fmt.Sprintf("[%s] %-5s", timestamp, level)
	if l.Name != "" {
		prefix = fmt.Sprintf("%s [%s]", prefix, l.Name)
	}

	if l.NoColor {
		fmt.Fprintf(l.writer, "%s %s\n", prefix, formatted)
	} else {
		fmt.Fprintf(l.writer, "%s%s %s\033[0m\n", level.Color(), prefix, formatted)
	}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(Debug, msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(Info, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(Warn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(Error, msg, args...)
}
