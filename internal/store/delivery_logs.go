package store

import (
	"context"
	"fmt"

	"github.com/storehook/webhook-svc/internal/models"
)

// AppendDeliveryLog appends one delivery attempt record. The log is
// append-only; entries are never updated or deleted.
func (s *Store) AppendDeliveryLog(ctx context.Context, entry *models.DeliveryLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append delivery log: %w", err)
	}
	return nil
}
