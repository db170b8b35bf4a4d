package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Ключи атрибутов, общие для всех логов runner'а.
const (
	KeyRunID     = "run_id"
	KeyPipeline  = "pipeline"
	KeyNamespace = "namespace"
	KeyJob       = "job"
)

// ParseLevel разбирает уровень логирования: DEBUG, INFO, WARN (WARNING),
// ERROR без учёта регистра. Неизвестное значение → INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogLevel определяет уровень логирования из переменной LOG_LEVEL.
func LogLevel() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// NewLogger создаёт логгер. format "text" — человекочитаемый вывод,
// иначе JSON. На уровне DEBUG в записи добавляется источник.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetupLogger инициализирует глобальный логгер из LOG_LEVEL и LOG_FORMAT
// (json по умолчанию, text для разработки).
//
// Логи пишутся в stderr: stdout занят выводом команд (таблицы, JSON, YAML).
func SetupLogger() *slog.Logger {
	logger := NewLogger(os.Stderr, LogLevel(), os.Getenv("LOG_FORMAT"))
	slog.SetDefault(logger)
	return logger
}

// WithRunID возвращает логгер с добавленным run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With(KeyRunID, runID)
}

// WithJob возвращает логгер с добавленным job.
func WithJob(logger *slog.Logger, job string) *slog.Logger {
	return logger.With(KeyJob, job)
}

// WithPipeline возвращает логгер с добавленными pipeline и namespace.
func WithPipeline(logger *slog.Logger, pipeline, namespace string) *slog.Logger {
	return logger.With(KeyPipeline, pipeline, KeyNamespace, namespace)
}
