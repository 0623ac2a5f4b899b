package observability

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"chatneto/internal/rabbitmq"
)

// Publisher pushes relay lifecycle envelopes onto the events exchange.
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, event EventEnvelope, headers map[string]string) error
}

// AMQPPublisher is the broker-backed Publisher used when AMQP is configured.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAMQPPublisher dials the broker through the shared bootstrap.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, ch, err := rabbitmq.Setup(url, exchange)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// PublishJSON publishes one lifecycle envelope. Request and trace ids ride in
// the AMQP headers so consumers can correlate without parsing the body.
func (p *AMQPPublisher) PublishJSON(ctx context.Context, routingKey string, event EventEnvelope, headers map[string]string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	amqpHeaders := amqp.Table{}
	for key, value := range headers {
		amqpHeaders[key] = value
	}

	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      amqpHeaders,
	})
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

var defaultPublisher Publisher

// SetPublisher installs the process-wide lifecycle publisher. Unset means
// lifecycle events are dropped silently.
func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent publishes through the installed publisher, counting failures.
func PublishEvent(ctx context.Context, routingKey string, event EventEnvelope, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.PublishJSON(ctx, routingKey, event, headers)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
