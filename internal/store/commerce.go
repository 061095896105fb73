package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storehook/webhook-svc/internal/models"
)

// GetOrder loads one order. Returns gorm.ErrRecordNotFound when missing.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// GetCustomer loads one customer. Returns gorm.ErrRecordNotFound when missing.
func (s *Store) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := s.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// ListOrderItems returns all line items of an order
func (s *Store) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	return items, nil
}

// GetProduct loads one product. Returns gorm.ErrRecordNotFound when missing.
func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// MarkOrderPaid records the gateway confirmation on the order and returns
// the updated row. The order must exist.
func (s *Store) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, transactionID, approvalNumber, documentURL string) (*models.Order, error) {
	now := time.Now()

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":          "completed",
			"transaction_id":  transactionID,
			"approval_number": approvalNumber,
			"document_url":    documentURL,
			"paid_at":         now,
			"updated_at":      now,
		}
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}
