package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

type Consumer struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	logger     *zap.Logger
}

// NewConsumer creates a consumer for a specific routing key. Each routing key
// gets its own durable queue, e.g. "job.created" -> "job.created.q".
func NewConsumer(url, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queueName := routingKey + ".q"
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		routingKey,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := DeclareDLQExchange(ch); err != nil {
		return nil, err
	}
	if _, err := DeclareDLQQueue(ch, routingKey); err != nil {
		return nil, err
	}

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming consumes messages until the channel closes. This method
// blocks and should be called in a goroutine. Handler errors nack the message
// back onto the queue; handlers decide for themselves when a message is
// poisoned and route it to the DLQ instead of returning an error.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	msgs, err := c.channel.Consume(
		c.queue.Name,
		"worker",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for msg := range msgs {
		ctx := context.Background()

		if err := c.handler(ctx, msg.Body); err != nil {
			c.logger.Error("Handler error",
				zap.String("routing_key", c.routingKey),
				zap.Error(err),
			)
			_ = msg.Nack(false, true)
			continue
		}

		if err := msg.Ack(false); err != nil {
			c.logger.Error("Failed to ack message",
				zap.String("routing_key", c.routingKey),
				zap.Error(err),
			)
		}
	}

	return nil
}
