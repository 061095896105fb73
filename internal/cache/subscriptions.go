package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/storehook/webhook-svc/internal/models"
)

// SubscriptionSource resolves the subscriptions of a business for an event
// type. The store's Postgres query is the canonical source.
type SubscriptionSource interface {
	SubscriptionsForEvent(ctx context.Context, businessID uuid.UUID, eventType models.EventType) ([]models.WebhookSubscription, error)
}

// SubscriptionCache is a read-through Redis cache in front of a
// SubscriptionSource. Cache failures are logged and fall through to the
// source; a cold or broken cache never fails a dispatch.
type SubscriptionCache struct {
	rdb    *redis.Client
	source SubscriptionSource
	ttl    time.Duration
	logger *zap.Logger
}

// NewSubscriptionCache wraps source with a Redis cache
func NewSubscriptionCache(rdb *redis.Client, source SubscriptionSource, ttl time.Duration, logger *zap.Logger) *SubscriptionCache {
	return &SubscriptionCache{
		rdb:    rdb,
		source: source,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(businessID uuid.UUID, eventType models.EventType) string {
	return fmt.Sprintf("webhook:subs:%s:%s", businessID, eventType)
}

// SubscriptionsForEvent implements SubscriptionSource
func (c *SubscriptionCache) SubscriptionsForEvent(ctx context.Context, businessID uuid.UUID, eventType models.EventType) ([]models.WebhookSubscription, error) {
	key := cacheKey(businessID, eventType)

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var subscriptions []models.WebhookSubscription
		if err := json.Unmarshal([]byte(cached), &subscriptions); err == nil {
			return subscriptions, nil
		}
		c.logger.Warn("Discarding corrupt subscription cache entry",
			zap.String("key", key),
		)
	} else if err != redis.Nil {
		c.logger.Warn("Subscription cache read failed, falling back to database",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	subscriptions, err := c.source.SubscriptionsForEvent(ctx, businessID, eventType)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(subscriptions); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Failed to populate subscription cache",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	return subscriptions, nil
}

// Invalidate drops the cached subscription list for one business/event pair
func (c *SubscriptionCache) Invalidate(ctx context.Context, businessID uuid.UUID, eventType models.EventType) error {
	return c.rdb.Del(ctx, cacheKey(businessID, eventType)).Err()
}
