package logx

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultFilePath      = "./logs/bandsweep.log"
	defaultMaxSizeMB     = 20
	defaultMaxBackups    = 3
	defaultMaxAgeDays    = 7
	defaultCompress      = true
	envLogLevel          = "LOG_LEVEL"
	envLogFormat         = "LOG_FORMAT"
	envLogOutput         = "LOG_OUTPUT"
	envLogFilePath       = "LOG_FILE_PATH"
	envLogFileMaxSizeMB  = "LOG_FILE_MAX_SIZE_MB"
	envLogFileMaxBackups = "LOG_FILE_MAX_BACKUPS"
	envLogFileMaxAgeDays = "LOG_FILE_MAX_AGE_DAYS"
)

// Defaults are the per-binary fallbacks used when the LOG_* variables are unset.
type Defaults struct {
	Level  string
	Format string
	Output string
}

var (
	// ServerDefaults log JSON to stdout at info, for long-running processes.
	ServerDefaults = Defaults{Level: "info", Format: "json", Output: "stdout"}

	// CLIDefaults keep stdout clean for command output.
	CLIDefaults = Defaults{Level: "warn", Format: "text", Output: "stderr"}
)

type Config struct {
	Level       slog.Level
	Format      string
	Output      string
	FilePath    string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
	Compress    bool
	AddSource   bool
	ServiceName string

	// Writer replaces the stdout/stderr stream when set.
	Writer io.Writer
}

// Option adjusts the loaded config before the logger is built.
type Option func(*Config)

// WithLevel forces the log level, e.g. for a --verbose flag.
func WithLevel(level slog.Level) Option {
	return func(c *Config) { c.Level = level }
}

// WithWriter sends stream output to w instead of stdout/stderr.
func WithWriter(w io.Writer) Option {
	return func(c *Config) { c.Writer = w }
}

func LoadConfig(serviceName string, defaults Defaults) Config {
	return Config{
		Level:       parseLevel(getenv(envLogLevel, defaults.Level)),
		Format:      normalizeFormat(getenv(envLogFormat, defaults.Format)),
		Output:      normalizeOutput(getenv(envLogOutput, defaults.Output), defaults.Output),
		FilePath:    getenv(envLogFilePath, defaultFilePath),
		MaxSizeMB:   getenvInt(envLogFileMaxSizeMB, defaultMaxSizeMB),
		MaxBackups:  getenvInt(envLogFileMaxBackups, defaultMaxBackups),
		MaxAgeDays:  getenvInt(envLogFileMaxAgeDays, defaultMaxAgeDays),
		Compress:    defaultCompress,
		ServiceName: serviceName,
	}
}

func Init(serviceName string, defaults Defaults, opts ...Option) (*slog.Logger, func() error, error) {
	cfg := LoadConfig(serviceName, defaults)
	for _, opt := range opts {
		opt(&cfg)
	}
	writer, closer, err := buildWriter(cfg)
	if err != nil {
		return nil, nil, err
	}
	handler := buildHandler(cfg, writer)
	logger := slog.New(handler).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	return logger, closer, nil
}

func buildHandler(cfg Config, writer io.Writer) slog.Handler {
	options := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.Format == "text" {
		return slog.NewTextHandler(writer, options)
	}
	return slog.NewJSONHandler(writer, options)
}

func buildWriter(cfg Config) (io.Writer, func() error, error) {
	useStdout := strings.Contains(cfg.Output, "stdout")
	useStderr := strings.Contains(cfg.Output, "stderr")
	useFile := strings.Contains(cfg.Output, "file")

	if !useStdout && !useStderr && !useFile {
		useStderr = true
	}

	writers := make([]io.Writer, 0, 2)
	var closers []io.Closer

	switch {
	case cfg.Writer != nil && (useStdout || useStderr):
		writers = append(writers, cfg.Writer)
	case useStdout:
		writers = append(writers, os.Stdout)
	case useStderr:
		writers = append(writers, os.Stderr)
	}

	if useFile {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		writers = append(writers, rotator)
		closers = append(closers, rotator)
	}

	closeFn := func() error {
		var lastErr error
		for _, c := range closers {
			if err := c.Close(); err != nil {
				lastErr = err
			}
		}
		return lastErr
	}

	if len(writers) == 1 {
		return writers[0], closeFn, nil
	}
	return io.MultiWriter(writers...), closeFn, nil
}

func normalizeFormat(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "text":
		return "text"
	default:
		return "json"
	}
}

func normalizeOutput(v, fallback string) string {
	out := strings.ToLower(strings.TrimSpace(v))
	switch out {
	case "stdout", "stderr", "file", "stdout,file", "stderr,file":
		return out
	default:
		return fallback
	}
}

func parseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
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
