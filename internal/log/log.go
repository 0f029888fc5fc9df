// Package log provides structured, colored logging for the ledger node.
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers for different parts of the system.
var (
	Ledger    zerolog.Logger
	Storage   zerolog.Logger
	Mempool   zerolog.Logger
	Consensus zerolog.Logger
	Miner     zerolog.Logger
	Node      zerolog.Logger
)

var (
	fileMu  sync.Mutex
	logFile *os.File
)

func init() {
	// Default to colored console output
	Logger = NewConsoleLogger(os.Stdout, "info")
	initComponentLoggers()
}

// Init initializes the logger with the given configuration.
// When file is non-empty, logs are written to both the console (colored or
// JSON depending on jsonOutput) and the file (always JSON for machine parsing).
// A file opened by a previous Init is closed.
func Init(level string, jsonOutput bool, file string) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	var f *os.File
	if file != "" {
		var err error
		f, err = os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
	}

	Logger = build(os.Stdout, level, jsonOutput, f)
	initComponentLoggers()

	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	return nil
}

// build assembles a logger writing to console and, when non-nil, to file.
func build(console io.Writer, level string, jsonOutput bool, file io.Writer) zerolog.Logger {
	if file == nil {
		if jsonOutput {
			return NewJSONLogger(console, level)
		}
		return NewConsoleLogger(console, level)
	}

	// Console writer: colored or JSON per flag.
	consoleWriter := console
	if !jsonOutput {
		consoleWriter = zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	// File writer: always JSON (no ANSI codes, structured for parsing).
	multi := zerolog.MultiLevelWriter(consoleWriter, file)
	return zerolog.New(multi).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    false,
	}

	lvl := parseLevel(level)
	return zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// NewJSONLogger creates a structured JSON logger.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	lvl := parseLevel(level)
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// SetOutput redirects every logger to w as JSON. Intended for tests that
// assert on log output.
func SetOutput(w io.Writer, level string) {
	Logger = NewJSONLogger(w, level)
	initComponentLoggers()
}

// parseLevel converts a string level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// initComponentLoggers initializes loggers for each component.
func initComponentLoggers() {
	Ledger = Logger.With().Str("component", "ledger").Logger()
	Storage = Logger.With().Str("component", "storage").Logger()
	Mempool = Logger.With().Str("component", "mempool").Logger()
	Consensus = Logger.With().Str("component", "consensus").Logger()
	Miner = Logger.With().Str("component", "miner").Logger()
	Node = Logger.With().Str("component", "node").Logger()
}

// Info logs an info message.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Error logs an error message.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Benchmark helper for timing operations.
func Benchmark(name string) func() {
	start := time.Now()
	return func() {
		Logger.Debug().
			Str("operation", name).
			Dur("duration", time.Since(start)).
			Msg("benchmark")
	}
}
