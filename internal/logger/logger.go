package logger

import (
	"os"
	"strings"
	"time"

	"github.com/phuslu/log"
)

var (
	// Global logger instance
	Logger log.Logger
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // console, json
	Color  bool   // enable color output for console
}

// Init initializes the global logger
func Init(cfg LogConfig) {
	level := ParseLevel(cfg.Level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		// JSON format for log collectors
		Logger = log.Logger{
			Level:      level,
			TimeFormat: time.RFC3339,
			Writer: &log.IOWriter{
				Writer: os.Stdout,
			},
		}
	default:
		Logger = log.Logger{
			Level:      level,
			TimeFormat: "15:04:05.000",
			Writer: &log.ConsoleWriter{
				ColorOutput:    cfg.Color && IsTerminal(),
				QuoteString:    true,
				EndWithMessage: true,
				Writer:         os.Stdout,
			},
		}
	}

	// Route package-level log.Debug() etc. through the configured logger.
	log.DefaultLogger = Logger
	log.DefaultLogger.SetLevel(level)
}

// ParseLevel converts string level to log.Level
func ParseLevel(level string) log.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return log.DebugLevel
	case "INFO":
		return log.InfoLevel
	case "WARN", "WARNING":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	case "FATAL":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// IsTerminal checks if stdout is a terminal
func IsTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
