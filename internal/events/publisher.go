package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"mailburst/internal/models"
)

// Publisher publishes dispatch outcome events to RabbitMQ
type Publisher struct {
	conn      *Connection
	queueName string
}

// OutcomeEvent records the final state of one queue item
type OutcomeEvent struct {
	ItemID     string            `json:"item_id"`
	CampaignID string            `json:"campaign_id"`
	Status     models.ItemStatus `json:"status"`
	Error      string            `json:"error,omitempty"`
	ResolvedAt time.Time         `json:"resolved_at"`
}

// NewPublisher creates a new publisher and declares its durable queue
func NewPublisher(conn *Connection, queueName string) (*Publisher, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &Publisher{
		conn:      conn,
		queueName: queueName,
	}, nil
}

// PublishOutcome publishes a single outcome event
func (p *Publisher) PublishOutcome(event OutcomeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome event: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	err = ch.Publish(
		"",          // exchange (default)
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish outcome event: %w", err)
	}

	return nil
}
