package logger

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// noopFunc is a reusable no-op function to avoid allocations
var noopFunc = func() {}

// MaxLogLines defines the maximum number of lines to keep in the log file
const MaxLogLines = 5000

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// zapcore has no trace level; one step below debug works with level checks.
const traceLevel = zapcore.DebugLevel - 1

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "TRACE"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelTrace:
		return traceLevel
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLogLevel parses a string into a LogLevel
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "TRACE":
		return LogLevelTrace
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger is a leveled printf-style logger backed by zap.
type Logger struct {
	sugar  *zap.SugaredLogger
	level  zap.AtomicLevel
	closer io.Closer
}

// New builds a Logger writing console-encoded lines to w.
func New(w zapcore.WriteSyncer, level LogLevel) *Logger {
	atom := zap.NewAtomicLevelAt(level.zapLevel())
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		CallerKey:      zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    encodeLevel,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), w, atom)
	l := &Logger{sugar: zap.New(core).Sugar(), level: atom}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	return l
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == traceLevel {
		enc.AppendString("[TRACE]")
		return
	}
	enc.AppendString("[" + l.CapitalString() + "]")
}

// defaultLogger is used before the global logger is initialized
var defaultLogger = New(zapcore.Lock(os.Stderr), LogLevelInfo)

// Global logger instance
var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// Init opens path as a line-limited log file and installs the result as the
// global logger. Caller must Close it.
func Init(path string, level LogLevel) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	l := New(NewLimitedWriter(f, MaxLogLines), level)
	SetGlobal(l)
	return l, nil
}

// SetGlobal installs l as the logger used by the package-level functions.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

func current() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return defaultLogger
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) { l.level.SetLevel(level.zapLevel()) }

// SetGlobalLevel sets the logging level on the global logger
func SetGlobalLevel(level LogLevel) { current().SetLevel(level) }

// Zap exposes the underlying zap logger, e.g. for zap.RedirectStdLog.
func (l *Logger) Zap() *zap.Logger { return l.sugar.Desugar() }

func (l *Logger) Debug(format string, v ...any) { l.sugar.Debugf(format, v...) }
func (l *Logger) Info(format string, v ...any)  { l.sugar.Infof(format, v...) }
func (l *Logger) Warn(format string, v ...any)  { l.sugar.Warnf(format, v...) }
func (l *Logger) Error(format string, v ...any) { l.sugar.Errorf(format, v...) }

// Fatal logs an error message and exits with code 1
func (l *Logger) Fatal(format string, v ...any) {
	l.sugar.Errorf(format, v...)
	_ = l.sugar.Sync()
	os.Exit(1)
}

// Close flushes and closes the underlying writer
func (l *Logger) Close() error {
	_ = l.sugar.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Trace returns a function that logs operation duration when called.
// Returns a no-op function when TRACE level is disabled to avoid overhead.
// Usage: defer logger.Trace("operation")()
func Trace(name string) func() {
	l := current()
	if !l.level.Enabled(traceLevel) {
		return noopFunc
	}
	start := time.Now()
	return func() {
		if ce := l.Zap().Check(traceLevel, name); ce != nil {
			ce.Write(zap.Duration("took", time.Since(start)))
		}
	}
}

// Package-level logging functions that use the global logger (or default if not initialized)
func Debug(format string, v ...any) { current().Debug(format, v...) }

func Info(format string, v ...any) { current().Info(format, v...) }

func Warn(format string, v ...any) { current().Warn(format, v...) }

func Error(format string, v ...any) { current().Error(format, v...) }

func Fatal(format string, v ...any) { current().Fatal(format, v...) }

// LimitedWriter is a zapcore.WriteSyncer over a file that keeps at most
// maxLines lines, dropping the oldest ones.
type LimitedWriter struct {
	file      *os.File
	lineCount int
	maxLines  int
	mutex     sync.Mutex
}

// NewLimitedWriter wraps file, counting the lines it already holds.
func NewLimitedWriter(file *os.File, maxLines int) *LimitedWriter {
	w := &LimitedWriter{file: file, maxLines: maxLines}
	w.countExistingLines()
	return w
}

// countExistingLines counts the number of lines in the current log file
func (w *LimitedWriter) countExistingLines() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.file.Seek(0, io.SeekStart)
	scanner := bufio.NewScanner(w.file)
	count := 0
	for scanner.Scan() {
		count++
	}
	w.lineCount = count
	w.file.Seek(0, io.SeekEnd)
}

// Write implements io.Writer interface
func (w *LimitedWriter) Write(p []byte) (n int, err error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	n, err = w.file.Write(p)
	if err != nil {
		return n, err
	}

	w.lineCount += strings.Count(string(p), "\n")
	if w.maxLines > 0 && w.lineCount > w.maxLines {
		w.rotate()
	}
	return n, nil
}

func (w *LimitedWriter) Sync() error { return w.file.Sync() }

func (w *LimitedWriter) Close() error { return w.file.Close() }

// rotate trims the file to keep only the last maxLines lines
func (w *LimitedWriter) rotate() {
	w.file.Seek(0, io.SeekStart)
	scanner := bufio.NewScanner(w.file)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if len(lines) > w.maxLines {
		lines = lines[len(lines)-w.maxLines:]
	}

	w.file.Truncate(0)
	w.file.Seek(0, io.SeekStart)
	for _, line := range lines {
		w.file.WriteString(line + "\n")
	}
	w.lineCount = len(lines)
}
