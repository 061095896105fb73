package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/storehook/webhook-svc/internal/config"
	"github.com/storehook/webhook-svc/internal/consumer"
	"github.com/storehook/webhook-svc/internal/dispatcher"
	"github.com/storehook/webhook-svc/internal/models"
	"github.com/storehook/webhook-svc/internal/rabbitmq"
)

// TaskConsumer is the queue-driven trigger surface: it consumes task ids
// from the delivery queue and runs each through the dispatcher. A task the
// sweep already claimed or finished is skipped, so the two surfaces never
// double-deliver.
type TaskConsumer struct {
	cfg         *config.DispatcherConfig
	conn        *rabbitmq.Connection
	disp        *dispatcher.Dispatcher
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	consumerTag string
	started     bool
}

// NewTaskConsumer creates a consumer for the delivery queue
func NewTaskConsumer(cfg *config.DispatcherConfig, conn *rabbitmq.Connection, disp *dispatcher.Dispatcher, logger *zap.Logger) *TaskConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskConsumer{
		cfg:         cfg,
		conn:        conn,
		disp:        disp,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		consumerTag: fmt.Sprintf("webhook-consumer-%d", time.Now().Unix()),
	}
}

// Start begins consuming from the delivery queue
func (c *TaskConsumer) Start() error {
	if c.cfg.DeliveryQueue == "" {
		return fmt.Errorf("delivery queue is required")
	}

	if err := c.startConsuming(); err != nil {
		return err
	}

	c.started = true
	c.logger.Info("Task consumer started",
		zap.String("delivery_queue", c.cfg.DeliveryQueue),
		zap.String("consumer_tag", c.consumerTag),
	)
	return nil
}

func (c *TaskConsumer) startConsuming() error {
	if err := c.conn.SetQoS(c.cfg.PrefetchCount); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	messages, err := c.conn.ConsumeMessages(c.cfg.DeliveryQueue, c.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming from queue %s: %w", c.cfg.DeliveryQueue, err)
	}

	go c.processMessages(messages)
	return nil
}

// Stop gracefully stops the consumer
func (c *TaskConsumer) Stop() error {
	c.logger.Info("Stopping task consumer",
		zap.String("consumer_tag", c.consumerTag),
	)
	c.cancel()

	if err := c.conn.CancelConsumer(c.consumerTag); err != nil {
		c.logger.Error("Failed to cancel consumer",
			zap.String("consumer_tag", c.consumerTag),
			zap.Error(err),
		)
	}
	return nil
}

func (c *TaskConsumer) processMessages(messages <-chan amqp.Delivery) {
	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("Task consumer context cancelled, stopping")
			return
		case msg, ok := <-messages:
			if !ok {
				c.logger.Warn("Message channel closed, attempting to restart consumer",
					zap.String("delivery_queue", c.cfg.DeliveryQueue),
				)
				// Keep retrying until the connection recovers or we stop
				for c.started {
					select {
					case <-c.ctx.Done():
						return
					default:
					}

					time.Sleep(2 * time.Second)

					if !c.conn.IsHealthy() {
						continue
					}

					if err := c.startConsuming(); err != nil {
						c.logger.Error("Failed to restart consuming, will retry",
							zap.Error(err),
						)
						time.Sleep(5 * time.Second)
						continue
					}

					c.logger.Info("Restarted consumer after channel close")
					return
				}
				return
			}
			consumer.ProcessMessage(c.logger, c.cfg.DeliveryQueue, msg, c)
		}
	}
}

// HandleMessage implements consumer.MessageHandler
func (c *TaskConsumer) HandleMessage(body []byte) error {
	var taskMsg models.TaskMessage
	if err := json.Unmarshal(body, &taskMsg); err != nil {
		c.logger.Error("Failed to unmarshal task message, skipping",
			zap.Error(err),
		)
		// ACK malformed messages, they will never become valid
		return nil
	}

	taskID, err := uuid.Parse(taskMsg.TaskID)
	if err != nil {
		c.logger.Error("Invalid task id in delivery message, skipping",
			zap.String("task_id", taskMsg.TaskID),
			zap.Error(err),
		)
		return nil
	}

	result, err := c.disp.ProcessTask(c.ctx, taskID)
	if err != nil {
		return err
	}
	if result == nil {
		c.logger.Debug("Task not claimable, already handled elsewhere",
			zap.String("task_id", taskMsg.TaskID),
		)
	}
	return nil
}
