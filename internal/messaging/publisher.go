// Package messaging publishes pipeline events to RabbitMQ for downstream
// consumers (push delivery, analytics).
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const readyRoutingKey = "interpretation.ready"

// InterpretationReadyEvent is emitted after an item completes.
type InterpretationReadyEvent struct {
	QueueID     string    `json:"queue_id"`
	UserID      string    `json:"user_id"`
	TemplateKey string    `json:"template_key"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Link        string    `json:"link,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// EventPublisher is the capability the pipeline depends on. Publishing is
// best-effort; failures never fail the processed item.
type EventPublisher interface {
	PublishInterpretationReady(ctx context.Context, event InterpretationReadyEvent) error
}

type rabbitMQPublisher struct {
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewRabbitMQPublisher opens a channel and declares the topic exchange.
func NewRabbitMQPublisher(conn *amqp.Connection, exchange string, logger *zap.Logger) (EventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publisher channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}
	return &rabbitMQPublisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger.Named("EventPublisher"),
	}, nil
}

func (p *rabbitMQPublisher) PublishInterpretationReady(ctx context.Context, event InterpretationReadyEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		readyRoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.logger.Debug("Published interpretation ready event",
		zap.String("queue_id", event.QueueID),
		zap.String("template_key", event.TemplateKey),
	)
	return nil
}
