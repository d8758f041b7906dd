package log

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/debug"
	"sync/atomic"
	"time"
)

type LogLevel string

const (
	FatalLevel    = "fatal"
	ErrorLevel    = "error"
	WarningLevel  = "warn"
	DebugLevel    = "debug"
	InfoLevel     = "info"
	TraceLevel    = "trace"
	DisabledLevel = "disabled"
)

var levelmap = map[LogLevel]int{
	TraceLevel:    5,
	DebugLevel:    4,
	InfoLevel:     3,
	WarningLevel:  2,
	ErrorLevel:    1,
	FatalLevel:    0,
	DisabledLevel: -1,
}

// A logger writing to one output stream.
// The level is shared by all streams, see SetLevel.
type stream struct {
	out *log.Logger
}

var (
	stdout = stream{log.New(os.Stdout, "", 0)}
	stderr = stream{log.New(os.Stderr, "", 0)}

	// Currently enabled level, stored as LogLevel.
	current atomic.Value
)

func init() {
	current.Store(LogLevel(InfoLevel))
}

func (s stream) println(level LogLevel, args ...any) {
	if !ShouldLog(level, GetLevel()) {
		return
	}
	ts := time.Now().Local()
	prefix := []any{
		fmt.Sprintf("%s.%03d", ts.Format("2006-01-02 15:04:05"), ts.Nanosecond()/1000000),
		fmt.Sprintf("- %5s -", level),
	}
	s.out.Println(append(prefix, args...)...)
}

func (s stream) printf(level LogLevel, format string, args ...any) {
	if !ShouldLog(level, GetLevel()) {
		return
	}
	s.println(level, fmt.Sprintf(format, args...))
}

// SetLevel changes the level of all loggers.
func SetLevel(level LogLevel) error {
	if !ValidLogLevel(level) {
		return fmt.Errorf("No such log level %s", level)
	}
	current.Store(level)
	return nil
}

// GetLevel returns the currently enabled level.
func GetLevel() LogLevel {
	return current.Load().(LogLevel)
}

// SetVerbosity maps a repeatable -v flag count to a level.
// 0 = info, 1 = debug, 2+ = trace.
func SetVerbosity(verbosity int) {
	switch {
	case verbosity >= 2:
		SetLevel(TraceLevel)
	case verbosity >= 1:
		SetLevel(DebugLevel)
	default:
		SetLevel(InfoLevel)
	}
}

func ValidLogLevel(level LogLevel) bool {
	_, ok := levelmap[level]
	return ok
}

func ShouldLog(logLevel, enabled LogLevel) bool {
	if !ValidLogLevel(logLevel) || !ValidLogLevel(enabled) {
		return false
	}
	return levelmap[logLevel] <= levelmap[enabled]
}

func Trace(args ...any) { stdout.println(TraceLevel, args...) }
func Debug(args ...any) { stdout.println(DebugLevel, args...) }
func Info(args ...any)  { stdout.println(InfoLevel, args...) }
func Warn(args ...any)  { stderr.println(WarningLevel, args...) }
func Error(args ...any) { stderr.println(ErrorLevel, args...) }

func Fatal(args ...any) {
	stderr.println(FatalLevel, args...)
	debug.PrintStack()
	os.Exit(1)
}

func Tracef(format string, args ...any) { stdout.printf(TraceLevel, format, args...) }
func Debugf(format string, args ...any) { stdout.printf(DebugLevel, format, args...) }
func Infof(format string, args ...any)  { stdout.printf(InfoLevel, format, args...) }
func Warnf(format string, args ...any)  { stderr.printf(WarningLevel, format, args...) }
func Errorf(format string, args ...any) { stderr.printf(ErrorLevel, format, args...) }

func Fatalf(format string, args ...any) {
	stderr.printf(FatalLevel, format, args...)
	debug.PrintStack()
	os.Exit(1)
}

type writeFunc func([]byte) (int, error)

func (fn writeFunc) Write(data []byte) (int, error) {
	return fn(data)
}

// NewLogWriter returns a writer that logs every write at the given level.
// Used to route third-party loggers (echo, grpc) into this logger.
func NewLogWriter(level LogLevel) io.Writer {
	return writeFunc(func(data []byte) (int, error) {
		switch level {
		case WarningLevel, ErrorLevel, FatalLevel:
			stderr.printf(level, "%s", data)
		default:
			stdout.printf(level, "%s", data)
		}
		return len(data), nil
	})
}

// DebugError logs an error and every error it wraps.
func DebugError(err error) {
	indent := 1

	Debug(err.Error())

	for {
		if err = errors.Unwrap(err); err == nil {
			break
		}

		Debugf("| %d: %s", indent, err.Error())
		indent += 1
	}
}
