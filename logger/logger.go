package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog logger carrying component or job fields
type Logger struct {
	logger zerolog.Logger
}

// Default is the process-wide logger
var Default *Logger

// Init initializes the logger writing to stdout
func Init() {
	InitWithWriter(os.Stdout)
}

// InitWithWriter initializes the logger with a console writer on out.
// NO_COLOR disables colors, which keeps CI and container logs readable.
func InitWithWriter(out io.Writer) {
	level := getLogLevel()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}

	Default = &Logger{logger: zerolog.New(output).With().Timestamp().Logger()}
	Default.Debug().Str("level", level.String()).Msg("Logger initialized")
}

// getLogLevel reads LOG_LEVEL, falling back to info in production and
// debug elsewhere.
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if os.Getenv("LEAFLET_ENVIRONMENT") == "production" {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func (l *Logger) with(key, value string) *Logger {
	return &Logger{logger: l.logger.With().Str(key, value).Logger()}
}

// WithJob returns a logger tagging every event with the job it works on.
func (l *Logger) WithJob(jobID, runID, weekID string) *Logger {
	return &Logger{logger: l.logger.With().
		Str("job_id", jobID).
		Str("run_id", runID).
		Str("week_id", weekID).
		Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

func ensure() *Logger {
	if Default == nil {
		Init()
	}
	return Default
}

// Debug logs a formatted debug message on the default logger
func Debug(format string, v ...interface{}) {
	ensure().Debug().Msgf(format, v...)
}

// Info logs a formatted info message on the default logger
func Info(format string, v ...interface{}) {
	ensure().Info().Msgf(format, v...)
}

// Warn logs a formatted warning on the default logger
func Warn(format string, v ...interface{}) {
	ensure().Warn().Msgf(format, v...)
}

// ForSource creates a logger for a retailer source
func ForSource(store string) *Logger {
	return ensure().with("store", store)
}

func component(name string) *Logger {
	return ensure().with("component", name)
}

// ForWorker creates a logger for the worker
func ForWorker() *Logger { return component("worker") }

// ForTracker creates a logger for the job lifecycle tracker
func ForTracker() *Logger { return component("tracker") }

// ForStore creates a logger for the persistence backend
func ForStore() *Logger { return component("store") }

// ForPublisher creates a logger for the run event publisher
func ForPublisher() *Logger { return component("publisher") }

// ForCache creates a logger for the cache
func ForCache() *Logger { return component("cache") }
