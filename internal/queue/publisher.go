package queue

import (
	"encoding/json"
	"fmt"

	"github.com/storehook/webhook-svc/internal/config"
	"github.com/storehook/webhook-svc/internal/models"
	"github.com/storehook/webhook-svc/internal/rabbitmq"
)

// Publisher pushes task ids onto the delivery queue so the consumer picks
// them up immediately instead of waiting for the next sweep
type Publisher struct {
	conn       *rabbitmq.Connection
	exchange   string
	routingKey string
}

// NewPublisher creates a delivery-queue publisher
func NewPublisher(conn *rabbitmq.Connection, cfg *config.DispatcherConfig) *Publisher {
	return &Publisher{
		conn:       conn,
		exchange:   cfg.DeliveryExchange,
		routingKey: cfg.DeliveryRoutingKey,
	}
}

// PublishTaskID publishes one task id to the delivery queue
func (p *Publisher) PublishTaskID(taskID string) error {
	body, err := json.Marshal(models.TaskMessage{TaskID: taskID})
	if err != nil {
		return fmt.Errorf("failed to marshal task message: %w", err)
	}

	if err := p.conn.PublishMessage(p.exchange, p.routingKey, body); err != nil {
		return fmt.Errorf("failed to publish to delivery queue: %w", err)
	}
	return nil
}
