// Package payload builds the JSON documents delivered to webhook receivers.
// Queued tasks capture the document at enqueue time; the direct dispatch
// path assembles it from live order state at delivery time. Both paths share
// the same document shape.
package payload

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/storehook/webhook-svc/internal/models"
)

type Document struct {
	EventType  models.EventType `json:"event_type"`
	BusinessID uuid.UUID        `json:"business_id"`
	Order      OrderInfo        `json:"order"`
	Customer   *CustomerInfo    `json:"customer,omitempty"`
	Items      []ItemInfo       `json:"items"`
	Product    *ProductInfo     `json:"product,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

type OrderInfo struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerInfo struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
}

type ItemInfo struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
}

type ProductInfo struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price float64   `json:"price"`
}

// Build assembles the delivery document for an order-level event.
// customer and product may be nil.
func Build(eventType models.EventType, order *models.Order, customer *models.Customer, items []models.OrderItem, product *models.Product) (json.RawMessage, error) {
	doc := Document{
		EventType:  eventType,
		BusinessID: order.BusinessID,
		Order: OrderInfo{
			ID:        order.ID,
			Status:    order.Status,
			Total:     order.Total,
			Currency:  order.Currency,
			CreatedAt: order.CreatedAt,
		},
		Items:      make([]ItemInfo, 0, len(items)),
		OccurredAt: time.Now().UTC(),
	}

	if customer != nil {
		doc.Customer = &CustomerInfo{
			ID:    customer.ID,
			Name:  customer.Name,
			Email: customer.Email,
			Phone: customer.Phone,
		}
	}

	for _, item := range items {
		doc.Items = append(doc.Items, ItemInfo{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	if product != nil {
		doc.Product = &ProductInfo{
			ID:    product.ID,
			Name:  product.Name,
			Price: product.Price,
		}
	}

	return json.Marshal(doc)
}

// PlaceholderOrder builds the minimal default order record substituted when
// the order row itself cannot be loaded at enqueue time. Delivery is still
// attempted with whatever data is available.
func PlaceholderOrder(orderID, businessID uuid.UUID) *models.Order {
	return &models.Order{
		ID:         orderID,
		BusinessID: businessID,
		Status:     "unknown",
		Currency:   "USD",
		CreatedAt:  time.Now().UTC(),
	}
}
