// Package telemetry — логи и метрики runner'а.
//
// logging.go настраивает slog по LOG_LEVEL и LOG_FORMAT и задаёт общие
// ключи атрибутов (run_id, pipeline, namespace, job). metrics.go
// содержит Prometheus метрики runs и jobs; Metrics подключается к
// runner как Observer, а режим serve отдаёт их на /metrics.
package telemetry
