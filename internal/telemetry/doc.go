// Package telemetry обеспечивает наблюдаемость планировщика.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — внутренние Prometheus-метрики
//
// Метрики регистрируются в переданном prometheus.Registerer — пакет
// не поднимает собственный /metrics endpoint, это ответственность
// встраивающего приложения.
package telemetry
