package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Log is the application logger. It is usable before InitLogging runs (it
// writes to stdout) so early startup errors are never lost.
var Log = logrus.New()

// LogWriter is the writer shared with the gorm SQL logger.
var LogWriter io.Writer = os.Stdout

// LogFilePath returns the path to the backend log file.
func LogFilePath() string {
	return filepath.Join("logs", "upset-radar-api.log")
}

// InitLogging prepares the log file and points the logger at both stdout and
// the file, the same stream the /logs operational endpoint reads back.
func InitLogging() *os.File {
	if err := os.MkdirAll(filepath.Dir(LogFilePath()), os.ModePerm); err != nil {
		Log.Warnf("Failed to create logs directory: %v", err)
	}

	logFile, err := os.OpenFile(LogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		Log.Warnf("Failed to open log file: %v", err)
		LogWriter = os.Stdout
		Log.SetOutput(LogWriter)
		return nil
	}

	LogWriter = io.MultiWriter(os.Stdout, logFile)
	Log.SetOutput(LogWriter)
	Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logFile
}
