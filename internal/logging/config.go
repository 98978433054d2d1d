// Package logging configures logrus for the gateway and bridges library
// loggers onto it.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	EnvLogLevel   = "WAGATE_LOG_LEVEL"
	EnvLogFormat  = "WAGATE_LOG_FORMAT"
	EnvLogNoColor = "WAGATE_LOG_NOCOLOR"
)

// Config selects the level and output format.
type Config struct {
	Level   string
	Format  string // "text" or "json"
	NoColor bool
	Output  io.Writer
}

// Configure applies cfg, then environment overrides, to the standard logrus
// logger and returns it.
func Configure(cfg Config) *logrus.Logger {
	applyEnvOverrides(&cfg)

	logger := logrus.StandardLogger()
	if cfg.Output != nil {
		logger.SetOutput(cfg.Output)
	} else {
		logger.SetOutput(os.Stderr)
	}
	if lvl, ok := parseLevel(cfg.Level); ok {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	logger.SetFormatter(formatter(cfg))
	return logger
}

func formatter(cfg Config) logrus.Formatter {
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: cfg.NoColor,
	}
}

func applyEnvOverrides(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv(EnvLogLevel)); raw != "" {
		if _, ok := parseLevel(raw); ok {
			cfg.Level = raw
		}
	}
	if raw := strings.TrimSpace(os.Getenv(EnvLogFormat)); raw != "" {
		cfg.Format = raw
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

func parseLevel(raw string) (logrus.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return logrus.InfoLevel, false
	case "trace":
		return logrus.TraceLevel, true
	case "debug":
		return logrus.DebugLevel, true
	case "info":
		return logrus.InfoLevel, true
	case "warn", "warning":
		return logrus.WarnLevel, true
	case "error":
		return logrus.ErrorLevel, true
	case "fatal":
		return logrus.FatalLevel, true
	default:
		return logrus.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// ValidLevel reports whether raw names a supported level. Empty is valid
// and means info.
func ValidLevel(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return true
	}
	_, ok := parseLevel(raw)
	return ok
}
