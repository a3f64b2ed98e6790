package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// InitLogging prepares the log file and returns a logger writing to stdout and the file.
// The returned file is nil when the log file could not be opened; the caller closes it on shutdown.
func InitLogging(opts LogOptions, production bool) (*logrus.Logger, *os.File) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if production {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		logger.Warnf("Invalid LOG_LEVEL %q, falling back to info", opts.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if opts.Path == "" {
		return logger, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), os.ModePerm); err != nil {
		logger.Warnf("Failed to create logs directory: %v", err)
		return logger, nil
	}

	logFile, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warnf("Failed to open log file: %v", err)
		return logger, nil
	}

	logger.SetOutput(io.MultiWriter(os.Stdout, logFile))
	return logger, logFile
}
