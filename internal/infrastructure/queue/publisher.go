// Package queue publishes listing events to RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"webcarros-backend/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const DefaultQueue = "cars.events"

// Message is the JSON body published for each listing event.
type Message struct {
	EventID   string          `json:"event_id"`
	CarID     string          `json:"car_id"`
	EventType string          `json:"event_type"`
	ActorUID  string          `json:"actor_uid"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewMessage converts a stored event.
func NewMessage(ev domain.CarEvent) Message {
	data := json.RawMessage(ev.EventData)
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return Message{
		EventID:   ev.EventID.String(),
		CarID:     ev.CarID,
		EventType: ev.EventType,
		ActorUID:  ev.ActorUID,
		Data:      data,
		CreatedAt: ev.CreatedAt,
	}
}

// AMQPPublisher keeps one connection and channel, reopened lazily after a failure.
type AMQPPublisher struct {
	URL   string
	Queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPPublisher{URL: url, Queue: queue}
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	log.Info().Str("queue", p.Queue).Msg("rabbitmq: channel open")
	return ch, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev domain.CarEvent) error {
	body, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", p.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.EventID.String(),
		Type:         ev.EventType,
		Body:         body,
	})
	if err != nil {
		p.closeLocked()
	}
	return err
}

func (p *AMQPPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}
