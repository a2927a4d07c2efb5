// Package logging configures the process-wide zerolog output.
//
// Logging is configured once per process from a profile plus environment
// overrides, then components obtain scoped loggers via Logger.
package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Environment overrides.
const (
	EnvLogLevel     = "BUFSYNC_LOG_LEVEL"
	EnvLogTimestamp = "BUFSYNC_LOG_TIMESTAMP"
	EnvLogNoColor   = "BUFSYNC_LOG_NOCOLOR"
)

// Profile selects a logging baseline.
type Profile int

// Profiles.
const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var (
	configureOnce sync.Once
	root          zerolog.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// ConfigureRuntime applies the runtime profile.
func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

// ConfigureTests applies the test profile: debug level, no timestamps.
func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure applies a profile plus environment overrides. Only the
// first call has any effect.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		level := zerolog.InfoLevel
		timestamp := true
		if profile == ProfileTest {
			level = zerolog.DebugLevel
			timestamp = false
		}

		if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
			level = lvl
		}
		if v, err := strconv.ParseBool(os.Getenv(EnvLogTimestamp)); err == nil {
			timestamp = v
		}
		noColor := false
		if v, err := strconv.ParseBool(os.Getenv(EnvLogNoColor)); err == nil {
			noColor = v
		}

		out := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor}
		ctx := zerolog.New(out).Level(level).With()
		if timestamp {
			ctx = ctx.Timestamp()
		}
		root = ctx.Logger()
	})
}

// Logger returns a component-scoped logger.
func Logger(component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}

func parseLevel(s string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "off", "disabled":
		return zerolog.Disabled, true
	default:
		return zerolog.NoLevel, false
	}
}
