// Package jqlog implements the leveled, structured logger used throughout
// jequi. It is a trimmed-down relative of air.Logger: a single writer
// producing one JSON line per record, safe for concurrent use from many
// connection goroutines at once.
package jqlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// Level is the severity of a log record.
type Level uint8

// Log levels, ordered by increasing severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// Logger is a leveled JSON logger scoped to an application name.
type Logger struct {
	AppName string
	Output  io.Writer
	Enabled bool

	mu         sync.Mutex
	bufferPool sync.Pool
}

// New returns a Logger writing to os.Stdout for appName.
func New(appName string) *Logger {
	return &Logger{
		AppName: appName,
		Output:  os.Stdout,
		Enabled: true,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 256))
			},
		},
	}
}

func (l *Logger) log(lvl Level, format string, args ...interface{}) {
	if l == nil || !l.Enabled {
		return
	}

	message := fmt.Sprint(args...)
	if format != "" {
		message = fmt.Sprintf(format, args...)
	}

	_, file, line, _ := runtime.Caller(3)

	record := map[string]interface{}{
		"app_name": l.AppName,
		"time":     time.Now().UTC().Format(time.RFC3339),
		"level":    lvl.String(),
		"file":     path.Base(file),
		"line":     strconv.Itoa(line),
		"message":  message,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	buf := l.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer l.bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(record); err == nil {
		l.Output.Write(buf.Bytes())
	}

	if lvl == LevelFatal {
		os.Exit(1)
	}
}

// Debug logs a DEBUG-level record.
func (l *Logger) Debug(args ...interface{}) { l.log(LevelDebug, "", args...) }

// Debugf logs a formatted DEBUG-level record.
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }

// Info logs an INFO-level record.
func (l *Logger) Info(args ...interface{}) { l.log(LevelInfo, "", args...) }

// Infof logs a formatted INFO-level record.
func (l *Logger) Infof(format string, args ...interface{}) { l.log(LevelInfo, format, args...) }

// Warn logs a WARN-level record.
func (l *Logger) Warn(args ...interface{}) { l.log(LevelWarn, "", args...) }

// Warnf logs a formatted WARN-level record.
func (l *Logger) Warnf(format string, args ...interface{}) { l.log(LevelWarn, format, args...) }

// Error logs an ERROR-level record.
func (l *Logger) Error(args ...interface{}) { l.log(LevelError, "", args...) }

// Errorf logs a formatted ERROR-level record.
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, format, args...) }

// Fatal logs a FATAL-level record and terminates the process.
func (l *Logger) Fatal(args ...interface{}) { l.log(LevelFatal, "", args...) }

// Fatalf logs a formatted FATAL-level record and terminates the process.
func (l *Logger) Fatalf(format string, args ...interface{}) { l.log(LevelFatal, format, args...) }
