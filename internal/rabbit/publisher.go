// Package rabbit is the queue dispatch transport. When DISPATCH_MODE=queue,
// job envelopes are published here instead of POSTed to the generator; a
// generator-side consumer picks them up.
package rabbit

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"event-planner-core/internal/clients"
	"event-planner-core/pkg/logger"
)

type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *logger.Logger
}

func NewPublisher(url, queue string, log *logger.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Errorf("failed to connect to RabbitMQ: %v", err)
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		log.Errorf("failed to open RabbitMQ channel: %v", err)
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		log.Errorf("failed to declare queue %s: %v", queue, err)
		return nil, err
	}

	log.Infof("RabbitMQ publisher initialized (queue=%s)", queue)
	return &Publisher{conn: conn, channel: ch, queue: queue, log: log}, nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.log.Info("RabbitMQ connection closed")
}

// Dispatch publishes the envelope as a persistent JSON message. It satisfies
// clients.GeneratorClient so the dispatch worker does not care which
// transport carries the handoff.
func (p *Publisher) Dispatch(ctx context.Context, envelope clients.DispatchEnvelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	err = p.channel.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			Body:          body,
			Timestamp:     time.Now(),
			CorrelationId: envelope.CorrelationID,
		},
	)
	if err != nil {
		p.log.Errorf("failed to publish dispatch envelope for job %s: %v", envelope.JobID, err)
		return err
	}
	p.log.Debugf("dispatch envelope published (job=%s queue=%s)", envelope.JobID, p.queue)
	return nil
}
