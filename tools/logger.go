package tools

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Log = logrus.New()

// LogConfig controls where and how the package logger writes.
type LogConfig struct {
	Level      string
	Format     string // "text" | "json"
	Output     string // "stdout", "file" or "stdout,file"
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// LogConfigFromEnv reads LOG_* variables, falling back to sane defaults.
func LogConfigFromEnv() LogConfig {
	return LogConfig{
		Level:      getenv("LOG_LEVEL", "info"),
		Format:     getenv("LOG_FORMAT", "text"),
		Output:     getenv("LOG_OUTPUT", "stdout"),
		FilePath:   getenv("LOG_FILE_PATH", "./logs/onboard-sync.log"),
		MaxSizeMB:  getenvInt("LOG_FILE_MAX_SIZE_MB", 100),
		MaxBackups: getenvInt("LOG_FILE_MAX_BACKUPS", 7),
		MaxAgeDays: getenvInt("LOG_FILE_MAX_AGE_DAYS", 7),
	}
}

// ConfigureLogger applies cfg to Log. The returned closer flushes the rotating file, if any.
func ConfigureLogger(cfg LogConfig) io.Closer {
	if strings.EqualFold(cfg.Format, "json") {
		Log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   false,
			PadLevelText:    true,
		})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	var writers []io.Writer
	var rotator *lumberjack.Logger
	if strings.Contains(cfg.Output, "stdout") || !strings.Contains(cfg.Output, "file") {
		writers = append(writers, os.Stdout)
	}
	if strings.Contains(cfg.Output, "file") {
		rotator = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, rotator)
	}
	Log.SetOutput(io.MultiWriter(writers...))

	if rotator == nil {
		return nopCloser{}
	}
	return rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// LogSyncSummary prints the one-line tally at the end of a sync pass.
func LogSyncSummary(mode string, total, updated, skipped, failed int) {
	Log.Infof("[sync:%s] employees=%d updated=%d skipped=%d failed=%d", mode, total, updated, skipped, failed)
}

func getenv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
