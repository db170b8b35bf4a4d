// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление запросов на запуск
//   - events.go     — observer runner'а, публикующий ход runs
//
// Типы сообщений:
//   - run.started / run.finished — начало и итог run
//   - job.started / job.finished — отправка job и его терминальный статус
//   - pipeline.requested         — внешний запрос на запуск пайплайна
//
// Exchanges:
//   - mediacorr.events   — события runs (topic)
//   - mediacorr.requests — запросы на запуск (direct)
//   - mediacorr.dlq      — dead letter queue
package mq
