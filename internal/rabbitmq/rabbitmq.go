package rabbitmq

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/storehook/webhook-svc/internal/config"
)

// Connection manages the RabbitMQ connection and channel with automatic
// reconnection. Publishing is best-effort with bounded retries; consumers
// restart their own consume loops when the channel closes.
type Connection struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	config       *config.RabbitMQConfig
	logger       *zap.Logger
	stopChan     chan struct{}
	mu           sync.RWMutex
	reconnecting bool
	reconnectMu  sync.Mutex
}

// NewConnection creates a new Connection instance
func NewConnection(cfg *config.RabbitMQConfig, logger *zap.Logger) *Connection {
	return &Connection{
		config:   cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Connect establishes the connection, retrying with exponential backoff,
// and starts monitoring for reconnection
func (c *Connection) Connect() error {
	backoff := time.Second
	maxBackoff := 30 * time.Second
	maxInitialAttempts := 10

	for attempt := 1; ; attempt++ {
		if err := c.connect(); err != nil {
			if attempt >= maxInitialAttempts {
				return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxInitialAttempts, err)
			}
			c.logger.Warn("Initial connection to RabbitMQ failed, retrying...",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		break
	}

	go c.monitorConnection()
	return nil
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}
	if c.channel != nil && !c.channel.IsClosed() {
		c.channel.Close()
	}

	amqpConfig := amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Vhost:     c.config.VHost,
		Properties: amqp.Table{
			"connection_name": "commerce-webhooks",
		},
	}

	conn, err := amqp.DialConfig(c.config.ConnectionURL(), amqpConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel

	c.logger.Info("Connected to RabbitMQ",
		zap.String("host", c.config.Host),
		zap.String("vhost", c.config.VHost),
	)
	return nil
}

// monitorConnection watches for connection and channel closes and reconnects
func (c *Connection) monitorConnection() {
	for {
		c.mu.RLock()
		if c.conn == nil || c.channel == nil {
			c.mu.RUnlock()
			return
		}
		connClose := c.conn.NotifyClose(make(chan *amqp.Error, 1))
		channelClose := c.channel.NotifyClose(make(chan *amqp.Error, 1))
		c.mu.RUnlock()

		select {
		case <-c.stopChan:
			return
		case err := <-connClose:
			if err != nil {
				c.logger.Error("RabbitMQ connection closed, reconnecting",
					zap.String("reason", err.Reason),
				)
				c.reconnect()
			}
		case err := <-channelClose:
			if err != nil {
				c.logger.Error("RabbitMQ channel closed, reconnecting",
					zap.String("reason", err.Reason),
				)
				c.reconnect()
			}
		}
	}
}

func (c *Connection) reconnect() {
	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for attempt := 1; ; attempt++ {
		select {
		case <-c.stopChan:
			return
		default:
		}

		if err := c.connect(); err != nil {
			c.logger.Warn("Failed to reconnect to RabbitMQ, retrying...",
				zap.Error(err),
				zap.Int("attempt", attempt),
			)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.logger.Info("Reconnected to RabbitMQ", zap.Int("attempt", attempt))
		return
	}
}

// Close closes the connection and stops reconnection monitoring
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}

	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.logger.Info("RabbitMQ connection closed")
	}
}

// PublishMessage publishes a persistent JSON message, retrying briefly when
// the channel is mid-reconnect
func (c *Connection) PublishMessage(exchange, routingKey string, body []byte) error {
	maxRetries := 3
	retryDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		c.mu.RLock()
		ch := c.channel
		c.mu.RUnlock()

		if ch == nil || ch.IsClosed() {
			if attempt < maxRetries-1 {
				time.Sleep(retryDelay)
				retryDelay *= 2
				continue
			}
			return fmt.Errorf("RabbitMQ channel is not available after %d attempts", maxRetries)
		}

		err := ch.Publish(exchange, routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
		if err != nil {
			if attempt < maxRetries-1 {
				c.logger.Warn("Publish failed, retrying...",
					zap.Error(err),
					zap.Int("attempt", attempt+1),
				)
				time.Sleep(retryDelay)
				retryDelay *= 2
				continue
			}
			return fmt.Errorf("failed to publish message: %w", err)
		}

		return nil
	}

	return fmt.Errorf("failed to publish message after %d attempts", maxRetries)
}

// DeclareDeliveryTopology declares the durable exchange, queue, and binding
// used for task delivery messages
func (c *Connection) DeclareDeliveryTopology(exchange, routingKey, queue string) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return fmt.Errorf("RabbitMQ channel is not initialized or closed")
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to exchange %s: %w", queue, exchange, err)
	}
	return nil
}

// ConsumeMessages starts consuming messages from a queue
func (c *Connection) ConsumeMessages(queue, consumer string) (<-chan amqp.Delivery, error) {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return nil, fmt.Errorf("RabbitMQ channel is not initialized or closed")
	}

	messages, err := ch.Consume(queue, consumer, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	return messages, nil
}

// SetQoS sets the prefetch count for the channel
func (c *Connection) SetQoS(prefetchCount int) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return fmt.Errorf("RabbitMQ channel is not initialized or closed")
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	return nil
}

// CancelConsumer cancels a registered consumer by tag
func (c *Connection) CancelConsumer(tag string) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil {
		return nil
	}
	return ch.Cancel(tag, false)
}

// IsHealthy checks if the connection and channel are healthy
func (c *Connection) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}
