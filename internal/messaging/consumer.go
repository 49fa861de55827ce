package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ProgressSink receives decoded progress updates. Implemented by the
// websocket hub.
type ProgressSink interface {
	Deliver(update ProgressUpdate)
}

// ProgressConsumer reads progress updates from the queue and hands them
// to the sink.
type ProgressConsumer struct {
	channel   *amqp.Channel
	queueName string
	sink      ProgressSink
	logger    *zap.Logger
}

// NewProgressConsumer opens a channel and declares the updates queue.
func NewProgressConsumer(conn *amqp.Connection, queueName string, sink ProgressSink, logger *zap.Logger) (*ProgressConsumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("progress consumer: failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("progress consumer: failed to declare queue %q: %w", queueName, err)
	}

	return &ProgressConsumer{
		channel:   ch,
		queueName: queueName,
		sink:      sink,
		logger:    logger.Named("ProgressConsumer"),
	}, nil
}

// StartConsuming runs the delivery loop until the context is cancelled
// or the channel closes.
func (c *ProgressConsumer) StartConsuming(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("progress consumer: failed to start consuming: %w", err)
	}

	c.logger.Info("Progress consumer started", zap.String("queue", c.queueName))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Progress consumer stopping")
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("progress consumer: delivery channel closed")
			}

			var update ProgressUpdate
			if err := json.Unmarshal(delivery.Body, &update); err != nil {
				c.logger.Error("Failed to decode progress update, dropping", zap.Error(err))
				// Malformed message, do not requeue.
				_ = delivery.Nack(false, false)
				continue
			}

			c.sink.Deliver(update)
			if err := delivery.Ack(false); err != nil {
				c.logger.Warn("Failed to ack progress update", zap.Error(err))
			}
		}
	}
}

// Close closes the consumer channel.
func (c *ProgressConsumer) Close() error {
	return c.channel.Close()
}
