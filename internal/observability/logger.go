package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{
		logger: logger,
	}
}

// WithIdentifier adds frame identifier context to logger.
func (l *Logger) WithIdentifier(identifier string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("identifier", identifier).Logger(),
	}
}

// WithClaim adds the caller's verified bearer-token identity to logger.
func (l *Logger) WithClaim(userID int64, username string) *Logger {
	return &Logger{
		logger: l.logger.With().
			Int64("user_id", userID).
			Str("username", username).
			Logger(),
	}
}

// WithMethod adds the RPC method name to logger.
func (l *Logger) WithMethod(method string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("method", method).Logger(),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// WarnErr logs a warning message carrying an error.
func (l *Logger) WarnErr(err error, msg string) {
	l.logger.Warn().Err(err).Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(err error, msg string) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// FrameUploaded logs a completed SendDataFrame upload.
func (l *Logger) FrameUploaded(identifier string, numColumns int, numRows int64, payloadBytes int) {
	l.logger.Info().
		Str("identifier", identifier).
		Int("num_columns", numColumns).
		Int64("num_rows", numRows).
		Int("payload_bytes", payloadBytes).
		Msg("frame uploaded")
}

// FrameFetched logs a completed FetchDataFrame stream.
func (l *Logger) FrameFetched(identifier string, numChunks int, payloadBytes int) {
	l.logger.Info().
		Str("identifier", identifier).
		Int("num_chunks", numChunks).
		Int("payload_bytes", payloadBytes).
		Msg("frame fetched")
}

// ChallengeIssued logs a GetChallenge response.
func (l *Logger) ChallengeIssued(outstanding int) {
	l.logger.Debug().
		Int("outstanding_challenges", outstanding).
		Msg("challenge issued")
}

// PlanEvaluated logs a completed RunQuery evaluation.
func (l *Logger) PlanEvaluated(identifier string, numSegments int, duration time.Duration) {
	l.logger.Info().
		Str("identifier", identifier).
		Int("num_segments", numSegments).
		Float64("duration_seconds", duration.Seconds()).
		Msg("composite plan evaluated")
}

// Helper function to get hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
