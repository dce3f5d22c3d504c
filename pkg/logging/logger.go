package logging

import (
	"os"
	"strings"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
	FatalLevel LogLevel = "fatal"
)

// LogFormat selects the output encoding.
type LogFormat string

const (
	JSONFormat LogFormat = "json"
	TextFormat LogFormat = "text"
)

// Config holds logger construction options.
type Config struct {
	Level  LogLevel
	Format LogFormat

	// AddCaller stamps each entry with the emitting file and line.
	AddCaller bool

	// EnableColor colorizes text-format output.
	EnableColor bool
}

// DefaultConfig returns the settings cmd/server and cmd/client start from
// before flags and environment overrides apply.
func DefaultConfig() Config {
	return Config{
		Level:       InfoLevel,
		Format:      TextFormat,
		AddCaller:   true,
		EnableColor: true,
	}
}

var levelMap = map[LogLevel]logrus.Level{
	DebugLevel: logrus.DebugLevel,
	InfoLevel:  logrus.InfoLevel,
	WarnLevel:  logrus.WarnLevel,
	ErrorLevel: logrus.ErrorLevel,
	FatalLevel: logrus.FatalLevel,
}

func parseLogLevel(level LogLevel) logrus.Level {
	if l, ok := levelMap[level]; ok {
		return l
	}
	return logrus.InfoLevel
}

// NewLogger builds a configured logrus logger writing to stdout.
func NewLogger(config Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(parseLogLevel(config.Level))

	switch config.Format {
	case JSONFormat:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "caller",
			},
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FullTimestamp:   true,
			ForceColors:     config.EnableColor,
			DisableColors:   !config.EnableColor,
		})
	}

	logger.SetReportCaller(config.AddCaller)
	logger.SetOutput(os.Stdout)
	return logger
}

// NewLoggerFromEnv builds a logger from LOG_LEVEL and LOG_FORMAT, falling
// back to DefaultConfig for anything unset.
func NewLoggerFromEnv() *logrus.Logger {
	config := DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Level = LogLevel(strings.ToLower(level))
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Format = LogFormat(strings.ToLower(format))
	}
	return NewLogger(config)
}

// SystemLogger tags entries with the subsystem that emits them
// ("cmd-server", "cmd-client").
func SystemLogger(logger *logrus.Logger, systemName string) *logrus.Entry {
	return logger.WithField("system", systemName)
}

// ComponentLogger tags entries with a component inside a subsystem
// ("netchan", "tick-loop").
func ComponentLogger(logger *logrus.Logger, componentType string) *logrus.Entry {
	return logger.WithField("component", componentType)
}

// SessionLogger carries per-connection context: the peer's network
// address, its assigned player id, and a correlation id minted once at
// accept time. Every connection-lifecycle and packet-drop line for a
// NetChan goes through the entry this returns, so a log aggregator can
// group one session's events by correlation_id alone.
func SessionLogger(logger *logrus.Logger, peerAddr string, playerID uint16) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"peer":           peerAddr,
		"player_id":      playerID,
		"correlation_id": xid.New().String(),
	})
}
