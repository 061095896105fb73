package models

import (
	"fmt"
	"strings"
)

// EventType represents the type of commerce event that triggers a webhook
type EventType string

const (
	OrderCreated     EventType = "order_created"
	OrderPaid        EventType = "order_paid"
	ProductPurchased EventType = "product_purchased"
)

// ParseEventType parses a string into an EventType
// Returns an error if the event type is unknown
func ParseEventType(name string) (EventType, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	validTypes := []EventType{
		OrderCreated,
		OrderPaid,
		ProductPurchased,
	}

	for _, eventType := range validTypes {
		if string(eventType) == name {
			return eventType, nil
		}
	}

	return "", fmt.Errorf("unknown event type: %s", name)
}

// SubscriptionColumn returns the webhook_subscriptions column that flags
// whether a subscription wants this event type
func (e EventType) SubscriptionColumn() string {
	switch e {
	case OrderCreated:
		return "on_order_created"
	case OrderPaid:
		return "on_order_paid"
	case ProductPurchased:
		return "on_product_purchased"
	}
	return ""
}
