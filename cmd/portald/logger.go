package main

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// InitializeGlobalLogger sets up the logger with the specified log level.
func InitializeGlobalLogger(logLevel string) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level := setLogLevel(logLevel)

	logrus.WithField("log_level", level.String()).Info("Global logger initialized")
}

// setLogLevel applies logLevel, defaulting to info when it does not parse.
func setLogLevel(logLevel string) logrus.Level {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(logLevel)))
	if err != nil {
		level = logrus.InfoLevel

		logrus.WithError(err).Warn("Failed to parse log level, defaulting to info")
	}

	if logrus.GetLevel() != level {
		logrus.SetLevel(level)
	}

	return level
}
