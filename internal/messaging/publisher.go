package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishMaxAttempts = 3

// ProgressPublisher publishes client progress updates to the updates
// queue. The websocket consumer fans them out to connected sessions.
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, update ProgressUpdate) error
}

type rabbitMQProgressPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQProgressPublisher opens a channel and declares the updates
// queue. Queue parameters must match the consumer's declaration.
func NewRabbitMQProgressPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (ProgressPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("progress publisher: failed to open channel: %w", err)
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
		return nil, fmt.Errorf("progress publisher: failed to declare queue %q: %w", queueName, err)
	}

	return &rabbitMQProgressPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("ProgressPublisher"),
	}, nil
}

func (p *rabbitMQProgressPublisher) PublishProgress(ctx context.Context, update ProgressUpdate) error {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal progress update: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= publishMaxAttempts; attempt++ {
		lastErr = p.channel.PublishWithContext(ctx,
			"",          // exchange
			p.queueName, // routing key
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
			},
		)
		if lastErr == nil {
			return nil
		}
		p.logger.Warn("Failed to publish progress update, retrying",
			zap.Int("attempt", attempt), zap.String("productionID", update.ProductionID), zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}
	return fmt.Errorf("failed to publish progress update after %d attempts: %w", publishMaxAttempts, lastErr)
}
