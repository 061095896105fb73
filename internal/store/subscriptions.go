package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/storehook/webhook-svc/internal/models"
)

// SubscriptionsForEvent returns the active subscriptions of a business that
// want the given event type. Product scoping is applied by the caller, which
// also filters cached lists.
func (s *Store) SubscriptionsForEvent(ctx context.Context, businessID uuid.UUID, eventType models.EventType) ([]models.WebhookSubscription, error) {
	column := eventType.SubscriptionColumn()
	if column == "" {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	var subscriptions []models.WebhookSubscription
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND active = ? AND "+column+" = ?", businessID, true, true).
		Find(&subscriptions).Error

	if err != nil {
		return nil, fmt.Errorf("failed to query webhook subscriptions: %w", err)
	}

	return subscriptions, nil
}
