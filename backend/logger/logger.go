package logger

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vitiko98/mopidy-qobuz/backend"
)

// Logger wraps zerolog.Logger to satisfy backend.Logger.
type Logger struct {
	logger  zerolog.Logger
	logFile *os.File // Keep reference to close on shutdown
}

// Options configures a Logger.
type Options struct {
	Level     string
	Format    string
	AddSource bool
	// Dir enables a daily log file next to stdout when non-empty.
	Dir    string
	Output io.Writer
}

// New creates a new Logger with configurable output format.
func New(opts Options) (*Logger, error) {
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	var logFile *os.File
	if dir := strings.TrimSpace(opts.Dir); dir != "" {
		file, err := openLogFile(dir)
		if err != nil {
			return nil, err
		}
		logFile = file
		output = io.MultiWriter(output, file)
	}

	if strings.ToLower(strings.TrimSpace(opts.Format)) != "json" {
		output = zerolog.ConsoleWriter{Out: output, NoColor: true, TimeFormat: time.RFC3339}
	}

	zctx := zerolog.New(output).Level(parseLevel(opts.Level)).With().Timestamp()
	if opts.AddSource {
		zctx = zctx.Caller()
	}

	return &Logger{logger: zctx.Logger(), logFile: logFile}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// FromZerolog wraps an existing zerolog logger.
func FromZerolog(zl zerolog.Logger) *Logger {
	return &Logger{logger: zl}
}

// With returns a child logger with additional fields.
func (l *Logger) With(args ...any) backend.Logger {
	return &Logger{logger: l.logger.With().Fields(normalize(args)).Logger()}
}

func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug().Fields(normalize(args)).Msg(msg) }
func (l *Logger) Info(msg string, args ...any)  { l.logger.Info().Fields(normalize(args)).Msg(msg) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn().Fields(normalize(args)).Msg(msg) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error().Fields(normalize(args)).Msg(msg) }

// Zerolog returns the underlying zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// normalize turns a slog-style key/value list into the shape zerolog's Fields expects.
// A dangling key is paired with "!MISSING".
func normalize(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, 0, len(args)+1)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		var val any = "!MISSING"
		if i+1 < len(args) {
			val = args[i+1]
		}
		out = append(out, key, val)
	}
	return out
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "info":
		fallthrough
	default:
		return zerolog.InfoLevel
	}
}

func openLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	fileName := time.Now().Local().Format("2006-01-02") + ".log"
	file, err := os.OpenFile(filepath.Join(dir, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, errors.New("log file handle is nil")
	}
	return file, nil
}

// Close closes the log file handle.
func (l *Logger) Close() error {
	if l == nil || l.logFile == nil {
		return nil
	}
	return l.logFile.Close()
}
