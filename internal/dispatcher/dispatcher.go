package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storehook/webhook-svc/internal/config"
	"github.com/storehook/webhook-svc/internal/delivery"
	"github.com/storehook/webhook-svc/internal/models"
)

// Store is the task and delivery-log persistence surface the dispatcher
// needs. The GORM implementation lives in internal/store; tests substitute
// in-memory fakes.
type Store interface {
	ClaimPendingBatch(ctx context.Context, limit int) ([]models.NotificationTask, error)
	ClaimTask(ctx context.Context, id uuid.UUID) (*models.NotificationTask, error)
	FinalizeTask(ctx context.Context, id uuid.UUID, status string, attempts int, lastError *string) error
	AppendDeliveryLog(ctx context.Context, entry *models.DeliveryLog) error
}

// SubscriptionSource resolves matching subscriptions, usually through the
// Redis read-through cache
type SubscriptionSource interface {
	SubscriptionsForEvent(ctx context.Context, businessID uuid.UUID, eventType models.EventType) ([]models.WebhookSubscription, error)
}

// TaskResult summarizes the outcome of one task pass for trigger surfaces
// that report per-task results
type TaskResult struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	Error  *string   `json:"error,omitempty"`
}

// Dispatcher is the single delivery engine behind every trigger surface:
// the scheduled sweep, the on-demand endpoint, the queue consumer, and the
// direct order dispatch all drive the same claim/deliver/finalize logic.
type Dispatcher struct {
	cfg    *config.DispatcherConfig
	store  Store
	subs   SubscriptionSource
	client *delivery.Client
	logger *zap.Logger
}

// New creates a dispatcher with explicit dependencies
func New(cfg *config.DispatcherConfig, store Store, subs SubscriptionSource, client *delivery.Client, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		store:  store,
		subs:   subs,
		client: client,
		logger: logger,
	}
}

// ProcessBatch claims one batch of pending tasks, oldest first, and
// processes them concurrently. It waits for every delivery to settle and
// returns one result per claimed task. A store read failure is returned to
// the caller; per-task delivery failures are not.
func (d *Dispatcher) ProcessBatch(ctx context.Context) ([]TaskResult, error) {
	tasks, err := d.store.ClaimPendingBatch(ctx, d.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending tasks: %w", err)
	}

	if len(tasks) == 0 {
		return []TaskResult{}, nil
	}

	d.logger.Info("Processing webhook batch",
		zap.Int("task_count", len(tasks)),
	)

	results := make([]TaskResult, len(tasks))
	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(i int, task models.NotificationTask) {
			defer wg.Done()
			results[i] = d.processClaimed(ctx, &task)
		}(i, tasks[i])
	}
	wg.Wait()

	return results, nil
}

// ProcessTask claims and processes a single task by id. Returns nil if the
// task was not claimable (missing, already in flight, or terminal), which
// callers treat as already handled.
func (d *Dispatcher) ProcessTask(ctx context.Context, id uuid.UUID) (*TaskResult, error) {
	task, err := d.store.ClaimTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	result := d.processClaimed(ctx, task)
	return &result, nil
}

// processClaimed runs one delivery pass for a task the caller has already
// claimed, then finalizes it. Zero matching subscriptions completes the task
// with nothing to deliver and no delivery-log delta.
func (d *Dispatcher) processClaimed(ctx context.Context, task *models.NotificationTask) TaskResult {
	subscriptions, err := d.subs.SubscriptionsForEvent(ctx, task.BusinessID, task.EventType)
	if err != nil {
		// Upstream fetch failure: release the claim without consuming an
		// attempt so a later sweep retries from the same state.
		d.logger.Error("Failed to resolve subscriptions, releasing task",
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
		d.release(ctx, task)
		errMsg := fmt.Sprintf("failed to resolve subscriptions: %v", err)
		return TaskResult{ID: task.ID, Status: models.StatusPending, Error: &errMsg}
	}

	matched := subscriptions[:0:0]
	for _, sub := range subscriptions {
		if sub.AppliesToProduct(task.ProductID) {
			matched = append(matched, sub)
		}
	}

	results := make([]*delivery.Result, 0, len(matched))
	for i := range matched {
		sub := &matched[i]
		result := d.client.Deliver(ctx, &delivery.Request{
			URL:       sub.DestinationURL,
			Payload:   task.Payload,
			TaskID:    task.ID.String(),
			EventType: string(task.EventType),
			Secret:    sub.Secret,
		})
		results = append(results, result)

		entry := &models.DeliveryLog{
			SubscriptionID: sub.ID,
			TaskID:         &task.ID,
			OrderID:        task.OrderID,
			ProductID:      task.ProductID,
			RequestPayload: task.Payload,
			ResponseStatus: result.StatusCode(),
			ResponseBody:   result.ResponseBody,
		}
		if err := d.store.AppendDeliveryLog(ctx, entry); err != nil {
			d.logger.Error("Failed to append delivery log",
				zap.String("task_id", task.ID.String()),
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err),
			)
		}
	}

	maxAttempts := task.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = d.cfg.MaxAttempts
	}

	outcome := delivery.ResolvePassOutcome(results, task.Attempts, maxAttempts)
	if err := d.store.FinalizeTask(ctx, task.ID, outcome.Status, outcome.Attempts, outcome.LastError); err != nil {
		d.logger.Error("Failed to finalize task",
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
		errMsg := fmt.Sprintf("failed to finalize task: %v", err)
		return TaskResult{ID: task.ID, Status: task.Status, Error: &errMsg}
	}

	switch outcome.Status {
	case models.StatusCompleted:
		d.logger.Info("Webhook task completed",
			zap.String("task_id", task.ID.String()),
			zap.Int("subscription_count", len(matched)),
			zap.Int("attempts", outcome.Attempts),
		)
	case models.StatusFailed:
		d.logger.Warn("Webhook task failed permanently",
			zap.String("task_id", task.ID.String()),
			zap.Int("attempts", outcome.Attempts),
			zap.Stringp("last_error", outcome.LastError),
		)
	default:
		d.logger.Info("Webhook task will be retried",
			zap.String("task_id", task.ID.String()),
			zap.Int("attempts", outcome.Attempts),
			zap.Stringp("last_error", outcome.LastError),
		)
	}

	return TaskResult{ID: task.ID, Status: outcome.Status, Error: outcome.LastError}
}

// release returns a claimed task to pending with its state unchanged
func (d *Dispatcher) release(ctx context.Context, task *models.NotificationTask) {
	if err := d.store.FinalizeTask(ctx, task.ID, models.StatusPending, task.Attempts, nil); err != nil {
		d.logger.Error("Failed to release claimed task",
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
	}
}
