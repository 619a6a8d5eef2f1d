package logging

import (
	"github.com/sirupsen/logrus"

	"herald/pkg/config"
)

// Logger is the logrus logger every herald package logs through
type Logger = *logrus.Logger

// Fields are structured entry fields
type Fields = logrus.Fields

// Level aliases the logrus level type
type Level = logrus.Level

// Log levels
const (
	DebugLevel = logrus.DebugLevel
	InfoLevel  = logrus.InfoLevel
	WarnLevel  = logrus.WarnLevel
	ErrorLevel = logrus.ErrorLevel
)

// NewLogger builds a JSON logger at the LOG_LEVEL env level
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(config.GetLogLevel())
	return logger
}

// NewLoggerWithService builds a logger that stamps every entry with the
// service name
func NewLoggerWithService(serviceName string) *logrus.Logger {
	logger := NewLogger()

	// every entry carries the service field
	logger = logger.WithField("service", serviceName).Logger

	return logger
}
