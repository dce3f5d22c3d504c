// Package logging provides centralized structured logging configuration
// and utilities for the network core.
//
// This package wraps logrus to provide consistent logging across the
// server and client packages. It supports environment-based
// configuration, multiple formatters, and contextual logging.
//
// # Configuration
//
// The logger can be configured via environment variables:
//   - LOG_LEVEL: Sets the minimum log level (debug, info, warn, error, fatal). Default: info
//   - LOG_FORMAT: Sets the output format (json, text). Default: text
//
// # Usage
//
// Initialize the logger at application startup:
//
//	logger := logging.NewLogger(logging.Config{
//	    Level:     logging.InfoLevel,
//	    Format:    logging.TextFormat,
//	    AddCaller: true,
//	})
//
// Use SessionLogger for per-connection context so every log line from one
// NetChan's lifecycle carries the same correlation id:
//
//	entry := logging.SessionLogger(logger, addr.String(), playerID)
//	entry.Info("client connected")
//
// # Performance
//
// Avoid logging in hot paths (the tick loop, packet drain) above Info
// level. Use conditional debug logging for expensive operations:
//
//	if logger.GetLevel() >= logrus.DebugLevel {
//	    logger.WithFields(expensiveFields()).Debug("detailed state")
//	}
package logging
