package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeEvents   Exchange = "mediacorr.events"
	ExchangeRequests Exchange = "mediacorr.requests"
	ExchangeDLQ      Exchange = "mediacorr.dlq"
)

// Queues — имена очередей.
const (
	QueuePipelineRequested Queue = "pipeline.requested"
	QueueDLQRequests       Queue = "dlq.requests"
)

// Routing keys. Для событий ключ совпадает с типом сообщения.
const (
	RoutingKeyRequested   RoutingKey = "requested"
	RoutingKeyDLQRequests RoutingKey = "requests"
	RoutingKeyRunStarted  RoutingKey = RoutingKey(MessageTypeRunStarted)
	RoutingKeyJobStarted  RoutingKey = RoutingKey(MessageTypeJobStarted)
	RoutingKeyJobFinished RoutingKey = RoutingKey(MessageTypeJobFinished)
	RoutingKeyRunFinished RoutingKey = RoutingKey(MessageTypeRunFinished)
)

// SetupTopology объявляет exchanges, очереди и привязки.
// Операция идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
// События — topic: подписчики выбирают, например, "run.*" или "job.finished".
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeEvents, amqp.ExchangeTopic},
		{ExchangeRequests, amqp.ExchangeDirect},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди. Очередь событий runner не объявляет:
// её заводят потребители.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQRequests),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// pipeline.requested — некорректные запросы уходят в DLQ
		{QueuePipelineRequested, dlqArgs},
		{QueueDLQRequests, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueuePipelineRequested, RoutingKeyRequested, ExchangeRequests},
		{QueueDLQRequests, RoutingKeyDLQRequests, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  MediaCorr RabbitMQ Topology:

    mediacorr.events (topic)
    └── run.started, job.started, job.finished, run.finished
            Consumers: bind your own queue

    mediacorr.requests (direct)
    └── pipeline.requested [routing: requested]
            Consumer: mediacorr-runner serve
            DLQ: dlq.requests

    mediacorr.dlq (direct)
    └── dlq.requests [routing: requests]
            Manual processing
  `
}
