// Package logging provides structured logging using zerolog.
//
// A global Logger is configured once by Init. Session and Invocation return
// child loggers carrying the identifiers every runtime log line is keyed by.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level represents log levels.
type Level = zerolog.Level

// Log levels exposed for convenience.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config holds logger configuration.
type Config struct {
	Level  Level
	Output io.Writer // defaults to os.Stderr
	Pretty bool      // console writer instead of JSON

	// File, when set, additionally receives JSON logs. A directory gets a
	// timestamped toolrun-*.log file inside it.
	File string
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Level:  InfoLevel,
		Output: os.Stderr,
	}
}

var (
	fileMu   sync.Mutex
	logFile  *os.File
	filePath string
)

// Init configures the global logger. A log file opened by a previous Init
// is closed.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.Kitchen}
	}

	Close()
	if cfg.File != "" {
		f, err := openFile(cfg.File)
		if err != nil {
			fmt.Fprintf(cfg.Output, "logging: %v\n", err)
		} else {
			output = zerolog.MultiLevelWriter(output, f)
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = zerolog.New(output).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel parses a level name case-insensitively. Unknown names yield
// InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

func openFile(path string) (*os.File, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, "toolrun-"+time.Now().Format("20060102-150405")+".log")
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileMu.Lock()
	logFile, filePath = f, path
	fileMu.Unlock()
	return f, nil
}

// FilePath returns the current log file, or "" when not logging to a file.
func FilePath() string {
	fileMu.Lock()
	defer fileMu.Unlock()
	return filePath
}

// Close closes the log file, if any.
func Close() {
	fileMu.Lock()
	defer fileMu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	filePath = ""
}

// Session returns a child logger tagged with a session id.
func Session(sessionID string) zerolog.Logger {
	return Logger.With().Str("session", sessionID).Logger()
}

// Invocation returns a child logger tagged with one tool call.
func Invocation(sessionID, callID, tool string) zerolog.Logger {
	return Logger.With().
		Str("session", sessionID).
		Str("call", callID).
		Str("tool", tool).
		Logger()
}

// Debug starts a new debug level log message.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info starts a new info level log message.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn starts a new warn level log message.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error starts a new error level log message.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Fatal starts a new fatal level log message.
// Calling Msg or Send on the returned event will call os.Exit(1).
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

func init() {
	Init(DefaultConfig())
}
