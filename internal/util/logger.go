// Package util provides logging, host inspection and formatting helpers
// shared by the brickd packages.
package util

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig holds configuration for the logging system.
type LogConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	Console    bool   `json:"console"`
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Directory:  "logs",
		MaxSizeMB:  10,
		MaxBackups: 5,
		Console:    true,
	}
}

// InitLogger points the global zerolog logger at a dated JSON log file and,
// optionally, a console writer. The returned closer closes the log file.
func InitLogger(cfg LogConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", cfg.Directory, err)
	}

	logFilePath := logFileFor(cfg.Directory, time.Now(), int64(cfg.MaxSizeMB)*1024*1024)
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
	}

	writers := []io.Writer{logFile}
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("app", "brickd").
		Logger()

	log.Info().
		Str("level", level.String()).
		Str("log_file", logFilePath).
		Msg("logger initialized")

	go cleanOldLogs(cfg.Directory, cfg.MaxBackups)

	return logFile, nil
}

// logFileFor returns today's log file, moving on to a numbered sibling when
// the current one reached maxBytes.
func logFileFor(directory string, now time.Time, maxBytes int64) string {
	base := "brickd_" + now.Format("2006-01-02")
	path := filepath.Join(directory, base+".log")
	for n := 1; maxBytes > 0; n++ {
		info, err := os.Stat(path)
		if err != nil || info.Size() < maxBytes {
			break
		}
		path = filepath.Join(directory, fmt.Sprintf("%s.%d.log", base, n))
	}
	return path
}

// logFileOrder splits a log file name into its date and rotation index.
// The base file of a day has index 0.
func logFileOrder(name string) (string, int) {
	stem := strings.TrimSuffix(strings.TrimPrefix(name, "brickd_"), ".log")
	date, suffix, found := strings.Cut(stem, ".")
	if !found {
		return date, 0
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return date, 0
	}
	return date, n
}

// cleanOldLogs keeps the newest maxBackups log files.
func cleanOldLogs(directory string, maxBackups int) {
	if maxBackups <= 0 {
		return
	}
	entries, err := os.ReadDir(directory)
	if err != nil {
		return
	}

	var logFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "brickd_") && filepath.Ext(entry.Name()) == ".log" {
			logFiles = append(logFiles, entry.Name())
		}
	}

	// Oldest first: by date, then by rotation index within a day.
	slices.SortFunc(logFiles, func(a, b string) int {
		da, na := logFileOrder(a)
		db, nb := logFileOrder(b)
		return cmp.Or(cmp.Compare(da, db), cmp.Compare(na, nb))
	})
	for i := 0; i < len(logFiles)-maxBackups; i++ {
		path := filepath.Join(directory, logFiles[i])
		os.Remove(path)
		log.Debug().Str("file", path).Msg("removed old log file")
	}
}

// ComponentLogger creates a logger with a component name field.
func ComponentLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
