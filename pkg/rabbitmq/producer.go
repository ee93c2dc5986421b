/**
 * @description
 * This package provides a producer for publishing transfer status events to
 * RabbitMQ. Downstream consumers (client push, analytics) subscribe to the
 * durable topic exchange; publishing is best-effort and must never block a
 * state transition from being persisted.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stablepath/remit-orchestrator/internal/domain"
)

// TransferEventsExchange is the durable topic exchange for transfer updates.
const TransferEventsExchange = "remit.transfer_events"

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	PublishTransferStatus(ctx context.Context, event domain.TransferStatusEvent) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel for publishing.
type EventProducer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// FallbackProducer is a minimal no-op publisher used when RabbitMQ is
// unavailable at startup.
type FallbackProducer struct{}

func (p *FallbackProducer) PublishTransferStatus(ctx context.Context, event domain.TransferStatusEvent) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"publish skipped\" transfer_id=%s status=%s", event.TransferID, event.Status)
	return nil
}

func (p *FallbackProducer) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer creates and returns a new EventProducer. Dialing is bounded
// so startup does not hang on an unreachable broker.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch}, nil
}

// PublishTransferStatus publishes one status event with a routing key of the
// form transfer.status.<status>.
func (p *EventProducer) PublishTransferStatus(ctx context.Context, event domain.TransferStatusEvent) error {
	routingKey := "transfer.status." + string(event.Status)
	return p.publish(ctx, routingKey, event)
}

func (p *EventProducer) publish(ctx context.Context, routingKey string, body interface{}) error {
	if err := p.channel.ExchangeDeclare(
		TransferEventsExchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		if reopenErr := p.reopenChannel(); reopenErr != nil {
			return reopenErr
		}
		if err := p.channel.ExchangeDeclare(TransferEventsExchange, "topic", true, false, false, false, nil); err != nil {
			return err
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	err = p.channel.PublishWithContext(ctx,
		TransferEventsExchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        jsonBody,
		},
	)
	if err != nil {
		// One-shot retry on a fresh channel.
		log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" routing_key=%s err=%v", routingKey, err)
		if reopenErr := p.reopenChannel(); reopenErr != nil {
			return err
		}
		if exErr := p.channel.ExchangeDeclare(TransferEventsExchange, "topic", true, false, false, false, nil); exErr != nil {
			return err
		}
		return p.channel.PublishWithContext(ctx, TransferEventsExchange, routingKey, false, false, amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        jsonBody,
		})
	}
	return nil
}

func (p *EventProducer) reopenChannel() error {
	if p.conn == nil {
		return errors.New("rabbitmq connection is not open")
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	p.channel = ch
	return nil
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
