package models

import (
	"time"

	"github.com/google/uuid"
)

type WebhookSubscription struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID         uuid.UUID  `gorm:"type:uuid;not null" json:"business_id"`
	DestinationURL     string     `gorm:"not null" json:"destination_url"`
	Secret             string     `json:"secret"` // secret for HMAC, empty = unsigned
	OnOrderCreated     bool       `gorm:"default:false" json:"on_order_created"`
	OnOrderPaid        bool       `gorm:"default:false" json:"on_order_paid"`
	OnProductPurchased bool       `gorm:"default:false" json:"on_product_purchased"`
	ProductID          *uuid.UUID `gorm:"type:uuid" json:"product_id"` // nil = all products
	Active             bool       `gorm:"default:true" json:"active"`
	CreatedAt          time.Time  `gorm:"default:now()" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"default:now()" json:"updated_at"`
}

func (WebhookSubscription) TableName() string {
	return "webhook_subscriptions"
}

// WantsEvent reports whether the subscription's flag for the event type is set
func (s *WebhookSubscription) WantsEvent(eventType EventType) bool {
	switch eventType {
	case OrderCreated:
		return s.OnOrderCreated
	case OrderPaid:
		return s.OnOrderPaid
	case ProductPurchased:
		return s.OnProductPurchased
	}
	return false
}

// AppliesToProduct reports whether the subscription's product scope matches.
// A nil scope applies to all products.
func (s *WebhookSubscription) AppliesToProduct(productID *uuid.UUID) bool {
	if s.ProductID == nil {
		return true
	}
	return productID != nil && *s.ProductID == *productID
}
