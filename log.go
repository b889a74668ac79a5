package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

var logFile *os.File

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "watercooler").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "watercooler.log"), nil
}

// setupLog logs to stderr and opens the log file used while the progress
// view owns the terminal.
func setupLog() (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)

	path, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	logFile = f
	return f.Close, nil
}

// setLogLevel applies a level name; --debug wins over configuration.
func setLogLevel(name string) {
	if debug {
		log.SetLevel(log.DebugLevel)
		return
	}
	lvl, err := log.ParseLevel(name)
	if err != nil {
		log.Warn("Unknown log level, using info", "level", name)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// logToFile redirects logging away from the terminal and returns a function
// restoring stderr output.
func logToFile() func() {
	var w io.Writer = io.Discard
	if logFile != nil {
		w = logFile
	}
	log.SetOutput(w)
	log.SetReportTimestamp(true)
	return func() {
		log.SetOutput(os.Stderr)
		log.SetReportTimestamp(false)
	}
}
