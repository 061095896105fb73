package consumer

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MessageHandler is implemented by consumers of queue messages
type MessageHandler interface {
	HandleMessage(body []byte) error
}

// ProcessMessage runs one queue message through a handler and settles it:
// ACK on success, NACK without requeue on failure. Requeueing is
// intentionally off — the scheduled sweep is the durable retry path, so a
// poisoned message never loops through the queue.
func ProcessMessage(logger *zap.Logger, queue string, msg amqp.Delivery, handler MessageHandler) {
	if err := handler.HandleMessage(msg.Body); err != nil {
		logger.Error("Failed to process message from queue",
			zap.String("queue", queue),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		rejectMessage(logger, msg)
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack message from queue",
			zap.String("queue", queue),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		rejectMessage(logger, msg)
		return
	}

	logger.Debug("Message from queue processed",
		zap.String("queue", queue),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
	)
}

// rejectMessage NACKs a message with requeue=false
func rejectMessage(logger *zap.Logger, msg amqp.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		logger.Error("Failed to nack message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
	}
}
