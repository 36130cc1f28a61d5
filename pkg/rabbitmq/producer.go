/**
 * @description
 * Publishes donation and event-registration lifecycle messages to the
 * ajebo.events topic exchange. Consumers (finance reports, member
 * notifications) bind their own queues by routing key.
 *
 * @notes
 * - Publishing is best effort from the caller's point of view. When the broker
 *   is not configured or unreachable at boot, EventProducerFallback is used and
 *   messages are only logged.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const Exchange = "ajebo.events"

const (
	RoutingDonationInitiated = "donation.initiated"
	RoutingDonationCompleted = "donation.completed"
	RoutingDonationFailed    = "donation.failed"
	RoutingDonationExpired   = "donation.expired"
	RoutingEventRegistered   = "event.registered"
	RoutingEventUnregistered = "event.unregistered"
	RoutingEventCancelled    = "event.cancelled"
)

// Publisher is the narrow interface the services depend on.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close()
}

type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// EventProducerFallback logs instead of publishing.
type EventProducerFallback struct{}

func (EventProducerFallback) Publish(ctx context.Context, routingKey string, body interface{}) error {
	payload, _ := json.Marshal(body)
	log.Printf("level=info component=rabbitmq msg=\"broker unavailable; event dropped\" routing_key=%s body=%s", routingKey, payload)
	return nil
}

func (EventProducerFallback) Close() {}

// sanitizeAMQPURL strips quotes and stray prefixes that sneak in from .env
// files and dashboards, then insists on an amqp(s) scheme.
func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("RABBITMQ_URL must use amqp:// or amqps://")
	}
	return clean, nil
}

// NewEventProducer dials the broker and declares the topic exchange.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	p := &EventProducer{conn: conn, exchange: Exchange}
	if err := p.openChannel(); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *EventProducer) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return err
	}
	p.channel = ch
	return nil
}

// Publish sends body as JSON. A failed publish reopens the channel once and
// retries; the second error is returned.
func (p *EventProducer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Printf("level=error component=rabbitmq msg=\"json marshal failed\" routing_key=%s err=%v", routingKey, err)
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Type:         routingKey,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err == nil {
			return nil
		}
		log.Printf("level=warn component=rabbitmq msg=\"publish failed; reopening channel\" routing_key=%s err=%v", routingKey, err)
	}
	if p.conn == nil || p.conn.IsClosed() {
		if err == nil {
			err = amqp091.ErrClosed
		}
		return err
	}
	if chErr := p.openChannel(); chErr != nil {
		return chErr
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
