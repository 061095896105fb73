package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storehook/webhook-svc/internal/delivery"
	"github.com/storehook/webhook-svc/internal/models"
	"github.com/storehook/webhook-svc/internal/payload"
)

// OrderSource loads live order state for the direct dispatch path
type OrderSource interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
}

// DispatchOrderEvent delivers an order event synchronously, bypassing the
// task queue. The payload is assembled from the order's current state at
// delivery time, not from a stored snapshot. Delivery failures are returned
// to the caller, which logs and swallows them when its own primary operation
// already succeeded.
func (d *Dispatcher) DispatchOrderEvent(ctx context.Context, orders OrderSource, orderID uuid.UUID, eventType models.EventType) error {
	order, err := orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	var customer *models.Customer
	if order.CustomerID != nil {
		customer, err = orders.GetCustomer(ctx, *order.CustomerID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load customer: %w", err)
		}
	}

	items, err := orders.ListOrderItems(ctx, orderID)
	if err != nil {
		return err
	}

	doc, err := payload.Build(eventType, order, customer, items, nil)
	if err != nil {
		return fmt.Errorf("failed to build payload: %w", err)
	}

	subscriptions, err := d.subs.SubscriptionsForEvent(ctx, order.BusinessID, eventType)
	if err != nil {
		return fmt.Errorf("failed to resolve subscriptions: %w", err)
	}

	if len(subscriptions) == 0 {
		d.logger.Debug("No subscriptions for direct dispatch",
			zap.String("order_id", orderID.String()),
			zap.String("event_type", string(eventType)),
		)
		return nil
	}

	// One idempotency id per direct dispatch, shared across subscriptions
	dispatchID := uuid.New()

	failed := 0
	var firstCause string
	for i := range subscriptions {
		sub := &subscriptions[i]
		result := d.client.Deliver(ctx, &delivery.Request{
			URL:       sub.DestinationURL,
			Payload:   doc,
			TaskID:    dispatchID.String(),
			EventType: string(eventType),
			Secret:    sub.Secret,
		})

		entry := &models.DeliveryLog{
			SubscriptionID: sub.ID,
			OrderID:        orderID,
			RequestPayload: doc,
			ResponseStatus: result.StatusCode(),
			ResponseBody:   result.ResponseBody,
		}
		if err := d.store.AppendDeliveryLog(ctx, entry); err != nil {
			d.logger.Error("Failed to append delivery log for direct dispatch",
				zap.String("order_id", orderID.String()),
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err),
			)
		}

		if !result.Succeeded() {
			failed++
			if firstCause == "" {
				if result.Err != nil {
					firstCause = result.Err.Error()
				} else {
					firstCause = fmt.Sprintf("HTTP %d", result.StatusCode())
				}
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d/%d direct deliveries failed: %s", failed, len(subscriptions), firstCause)
	}

	d.logger.Info("Direct dispatch delivered",
		zap.String("order_id", orderID.String()),
		zap.String("event_type", string(eventType)),
		zap.Int("subscription_count", len(subscriptions)),
	)
	return nil
}
