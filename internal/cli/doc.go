// Package cli реализует команды mediacorr-runner.
//
// # Обзор
//
// CLI запускает пайплайн MediaCorr в Kubernetes напрямую: без API
// сервера, через client-go. Конфигурация читается пакетом config
// (mediacorr.yaml, переменные MEDIACORR_*).
//
// # Ключевые компоненты
//
// ## Env
//
// Общее окружение команд: конфигурация, логгер, Kubernetes backend
// (создаётся лениво, render и validate к кластеру не обращаются) и
// подключения к PostgreSQL/RabbitMQ (Connect), если они настроены.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.Encoder) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) и логи — в stderr.
// Это позволяет использовать pipe: mediacorr-runner run --json | jq .
//
// ## Commands
//
//   - run: однократный запуск (--from, --to, --only, --timeout)
//   - status [JOB]: состояние Jobs в кластере
//   - render [JOB]: манифесты, которые отправит run
//   - validate: проверка пайплайна и манифестов
//   - history list/show: записанные runs (нужен database.url)
//   - request: запрос на запуск для serve (нужен rabbitmq.url)
//   - serve: cron, очередь запросов, /healthz и /metrics
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей envFn и outputFn — замыкания для ленивого создания
// Env и Output после парсинга PersistentFlags.
//
// ExitCode переводит ошибку команды в код завершения процесса.
package cli
