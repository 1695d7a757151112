package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Global logger instance
var (
	Log zerolog.Logger
)

// Initialize sets up the global logger with configuration
func Initialize(level string, pretty bool) {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Configure output format
	if pretty {
		// Pretty console output for development
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	// Set global logger
	Log = log.With().
		Str("service", "moosyncd").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

// GetLogger returns the global logger instance
func GetLogger() *zerolog.Logger {
	return &Log
}

// Sandbox creates a logger for SandboxPolicy/SocketBroker denials.
func Sandbox() *zerolog.Logger {
	l := Log.With().Str("component", "sandbox").Logger()
	return &l
}

// Extension creates a logger for ExtensionRegistry/PluginRuntime events.
func Extension() *zerolog.Logger {
	l := Log.With().Str("component", "extension").Logger()
	return &l
}

// Provider creates a logger for ProviderRegistry/ProviderAdapter events.
func Provider() *zerolog.Logger {
	l := Log.With().Str("component", "provider").Logger()
	return &l
}

// Playback creates a logger for PlaybackCoordinator/PlaybackBackend events.
func Playback() *zerolog.Logger {
	l := Log.With().Str("component", "playback").Logger()
	return &l
}

// EventBus creates a logger for EventBus fan-out events.
func EventBus() *zerolog.Logger {
	l := Log.With().Str("component", "eventbus").Logger()
	return &l
}

// Database creates a logger for LibraryStore events.
func Database() *zerolog.Logger {
	l := Log.With().Str("component", "database").Logger()
	return &l
}

// HTTP creates a logger for HTTP request events.
func HTTP() *zerolog.Logger {
	l := Log.With().Str("component", "http").Logger()
	return &l
}
