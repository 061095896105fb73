// Package emitter translates domain events into queued notification tasks.
// The delivery payload is captured once at enqueue time; later changes to
// the order do not affect already-queued notifications.
package emitter

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storehook/webhook-svc/internal/models"
	"github.com/storehook/webhook-svc/internal/payload"
)

// Store is the persistence surface the emitter needs
type Store interface {
	CreateTask(ctx context.Context, task *models.NotificationTask) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Publisher pushes enqueued task ids to the delivery queue for immediate
// pickup. Publishing is best-effort: the scheduled sweep is the durable
// fallback when the queue is unavailable.
type Publisher interface {
	PublishTaskID(taskID string) error
}

type Emitter struct {
	store       Store
	queue       Publisher // may be nil
	maxAttempts int
	logger      *zap.Logger
}

// New creates an emitter. queue may be nil when no delivery queue is wired.
func New(store Store, queue Publisher, maxAttempts int, logger *zap.Logger) *Emitter {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Emitter{
		store:       store,
		queue:       queue,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// EmitOrderCreated enqueues an order_created notification
func (e *Emitter) EmitOrderCreated(ctx context.Context, businessID, orderID uuid.UUID) (*models.NotificationTask, error) {
	return e.emit(ctx, models.OrderCreated, businessID, orderID, nil)
}

// EmitOrderPaid enqueues an order_paid notification
func (e *Emitter) EmitOrderPaid(ctx context.Context, businessID, orderID uuid.UUID) (*models.NotificationTask, error) {
	return e.emit(ctx, models.OrderPaid, businessID, orderID, nil)
}

// EmitProductPurchased enqueues a product_purchased notification scoped to
// one product
func (e *Emitter) EmitProductPurchased(ctx context.Context, businessID, orderID, productID uuid.UUID) (*models.NotificationTask, error) {
	return e.emit(ctx, models.ProductPurchased, businessID, orderID, &productID)
}

// emit captures the payload snapshot and inserts the task. A missing order
// row is substituted with a minimal default record so delivery is still
// attempted; any other lookup failure aborts without enqueuing.
func (e *Emitter) emit(ctx context.Context, eventType models.EventType, businessID, orderID uuid.UUID, productID *uuid.UUID) (*models.NotificationTask, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
		}
		e.logger.Warn("Order not found at enqueue time, using placeholder record",
			zap.String("order_id", orderID.String()),
			zap.String("event_type", string(eventType)),
		)
		order = payload.PlaceholderOrder(orderID, businessID)
	}

	var customer *models.Customer
	if order.CustomerID != nil {
		customer, err = e.store.GetCustomer(ctx, *order.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load customer %s: %w", order.CustomerID, err)
		}
	}

	items, err := e.store.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var product *models.Product
	if eventType == models.ProductPurchased && productID != nil {
		product, err = e.store.GetProduct(ctx, *productID)
		if err != nil {
			return nil, fmt.Errorf("failed to load product %s: %w", productID, err)
		}
	}

	doc, err := payload.Build(eventType, order, customer, items, product)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload: %w", err)
	}

	task := &models.NotificationTask{
		ID:          uuid.New(),
		BusinessID:  businessID,
		EventType:   eventType,
		OrderID:     orderID,
		ProductID:   productID,
		Payload:     doc,
		Status:      models.StatusPending,
		Attempts:    0,
		MaxAttempts: e.maxAttempts,
	}

	if err := e.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	e.logger.Info("Notification task enqueued",
		zap.String("task_id", task.ID.String()),
		zap.String("event_type", string(eventType)),
		zap.String("order_id", orderID.String()),
	)

	if e.queue != nil {
		if err := e.queue.PublishTaskID(task.ID.String()); err != nil {
			e.logger.Warn("Failed to publish task to delivery queue, sweep will pick it up",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
		}
	}

	return task, nil
}
