package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is usable from import time so library code can log without the
// service bootstrap; Init layers the configured formatter and level on top.
var Log = logrus.New()

func Init() {
	Log.SetOutput(os.Stdout)

	// JSON by default so the study pipeline logs are machine-readable;
	// LOG_FORMAT=text is easier on the eyes when running batches locally.
	if os.Getenv("LOG_FORMAT") == "text" {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log.SetLevel(logLevel)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}
