package models

import (
	"time"

	"github.com/google/uuid"
)

// Commerce rows the pipeline reads and mutates. The full CRUD surface for
// these lives in the storefront application; only the columns the webhook
// pipeline touches are mapped here.

type Order struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID     uuid.UUID  `gorm:"type:uuid;not null" json:"business_id"`
	CustomerID     *uuid.UUID `gorm:"type:uuid" json:"customer_id"`
	Status         string     `gorm:"not null;default:'open'" json:"status"`
	Total          float64    `gorm:"not null;default:0" json:"total"`
	Currency       string     `gorm:"not null;default:'USD'" json:"currency"`
	TransactionID  *string    `json:"transaction_id"`
	ApprovalNumber *string    `json:"approval_number"`
	DocumentURL    *string    `json:"document_url"`
	PaidAt         *time.Time `json:"paid_at"`
	CreatedAt      time.Time  `gorm:"default:now()" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"default:now()" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null" json:"order_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null" json:"product_id"`
	Name      string    `gorm:"not null" json:"name"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	UnitPrice float64   `gorm:"not null;default:0" json:"unit_price"`
	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

type Customer struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID   uuid.UUID `gorm:"type:uuid;not null" json:"business_id"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	CRMContactID *string   `gorm:"column:crm_contact_id" json:"crm_contact_id"`
	CreatedAt    time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"default:now()" json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

type Product struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null" json:"business_id"`
	Name       string    `gorm:"not null" json:"name"`
	Price      float64   `gorm:"not null;default:0" json:"price"`
	CreatedAt  time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:now()" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
