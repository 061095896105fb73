package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storehook/webhook-svc/internal/config"
	"github.com/storehook/webhook-svc/internal/delivery"
	"github.com/storehook/webhook-svc/internal/models"
)

// fakeStore is an in-memory Store with the same claim semantics as the
// Postgres implementation: pending tasks are claimed with a CAS to
// in_flight, and only in_flight tasks can be finalized.
type fakeStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.NotificationTask
	logs  []models.DeliveryLog
}

func newFakeStore(tasks ...*models.NotificationTask) *fakeStore {
	s := &fakeStore{tasks: make(map[uuid.UUID]*models.NotificationTask)}
	for _, task := range tasks {
		s.tasks[task.ID] = task
	}
	return s
}

func (s *fakeStore) ClaimPendingBatch(ctx context.Context, limit int) ([]models.NotificationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*models.NotificationTask
	for _, task := range s.tasks {
		if task.Status == models.StatusPending {
			pending = append(pending, task)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	claimed := make([]models.NotificationTask, 0, len(pending))
	for _, task := range pending {
		task.Status = models.StatusInFlight
		claimed = append(claimed, *task)
	}
	return claimed, nil
}

func (s *fakeStore) ClaimTask(ctx context.Context, id uuid.UUID) (*models.NotificationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status != models.StatusPending {
		return nil, nil
	}
	task.Status = models.StatusInFlight
	copied := *task
	return &copied, nil
}

func (s *fakeStore) FinalizeTask(ctx context.Context, id uuid.UUID, status string, attempts int, lastError *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status != models.StatusInFlight {
		return nil
	}
	now := time.Now()
	task.Status = status
	task.Attempts = attempts
	task.LastAttemptAt = &now
	if lastError != nil {
		task.LastError = lastError
	}
	return nil
}

func (s *fakeStore) AppendDeliveryLog(ctx context.Context, entry *models.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *fakeStore) task(id uuid.UUID) models.NotificationTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[id]
}

func (s *fakeStore) logCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

type fakeSubs struct {
	subs []models.WebhookSubscription
	err  error
}

func (f *fakeSubs) SubscriptionsForEvent(ctx context.Context, businessID uuid.UUID, eventType models.EventType) ([]models.WebhookSubscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	var matched []models.WebhookSubscription
	for _, sub := range f.subs {
		if sub.BusinessID == businessID && sub.Active && sub.WantsEvent(eventType) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

func testConfig() *config.DispatcherConfig {
	return &config.DispatcherConfig{
		BatchSize:           10,
		MaxAttempts:         3,
		HTTPTimeout:         5,
		MaxResponseBodySize: 4096,
	}
}

func newTestDispatcher(store Store, subs SubscriptionSource) *Dispatcher {
	cfg := testConfig()
	client := delivery.NewClient(cfg.HTTPTimeout, cfg.MaxResponseBodySize, zap.NewNop())
	return New(cfg, store, subs, client, zap.NewNop())
}

func pendingTask(businessID uuid.UUID, eventType models.EventType) *models.NotificationTask {
	return &models.NotificationTask{
		ID:          uuid.New(),
		BusinessID:  businessID,
		EventType:   eventType,
		OrderID:     uuid.New(),
		Payload:     json.RawMessage(`{"order":{"id":"o1"}}`),
		Status:      models.StatusPending,
		MaxAttempts: 3,
		CreatedAt:   time.Now(),
	}
}

func subscription(businessID uuid.UUID, url string, eventType models.EventType) models.WebhookSubscription {
	sub := models.WebhookSubscription{
		ID:             uuid.New(),
		BusinessID:     businessID,
		DestinationURL: url,
		Active:         true,
	}
	switch eventType {
	case models.OrderCreated:
		sub.OnOrderCreated = true
	case models.OrderPaid:
		sub.OnOrderPaid = true
	case models.ProductPurchased:
		sub.OnProductPurchased = true
	}
	return sub
}

func TestProcessBatchDeliversToMatchingSubscription(t *testing.T) {
	businessID := uuid.New()
	task := pendingTask(businessID, models.OrderPaid)

	var requests int32
	var gotWebhookID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		gotWebhookID = r.Header.Get("X-Webhook-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore(task)
	subs := &fakeSubs{subs: []models.WebhookSubscription{
		subscription(businessID, server.URL, models.OrderPaid),
	}}

	results, err := newTestDispatcher(store, subs).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("expected exactly 1 POST, got %d", n)
	}
	if gotWebhookID != task.ID.String() {
		t.Errorf("X-Webhook-ID = %q, want task id %s", gotWebhookID, task.ID)
	}

	final := store.task(task.ID)
	if final.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", final.Status)
	}
	if final.Attempts != 0 {
		t.Errorf("attempts = %d, success must not increment", final.Attempts)
	}
	if store.logCount() != 1 {
		t.Errorf("delivery log entries = %d, want 1", store.logCount())
	}
}

func TestZeroSubscriptionsCompletesTask(t *testing.T) {
	task := pendingTask(uuid.New(), models.OrderCreated)
	store := newFakeStore(task)

	results, err := newTestDispatcher(store, &fakeSubs{}).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Status != models.StatusCompleted {
		t.Fatalf("expected completed result, got %+v", results)
	}

	final := store.task(task.ID)
	if final.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", final.Status)
	}
	if store.logCount() != 0 {
		t.Errorf("zero-subscription pass must not write delivery logs, got %d", store.logCount())
	}
}

func TestFailingReceiverExhaustsAttempts(t *testing.T) {
	businessID := uuid.New()
	task := pendingTask(businessID, models.OrderPaid)

	var webhookIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookIDs = append(webhookIDs, r.Header.Get("X-Webhook-ID"))
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := newFakeStore(task)
	subs := &fakeSubs{subs: []models.WebhookSubscription{
		subscription(businessID, server.URL, models.OrderPaid),
	}}
	disp := newTestDispatcher(store, subs)

	for sweep := 1; sweep <= 3; sweep++ {
		if _, err := disp.ProcessBatch(context.Background()); err != nil {
			t.Fatalf("sweep %d: %v", sweep, err)
		}
		final := store.task(task.ID)
		if final.Attempts != sweep {
			t.Fatalf("after sweep %d attempts = %d", sweep, final.Attempts)
		}
		if sweep < 3 && final.Status != models.StatusPending {
			t.Fatalf("after sweep %d status = %s, want pending", sweep, final.Status)
		}
	}

	final := store.task(task.ID)
	if final.Status != models.StatusFailed {
		t.Errorf("status = %s, want failed after 3 failed tries", final.Status)
	}
	if final.LastError == nil {
		t.Error("expected last_error to be recorded")
	}

	// The idempotency id is stable across retries
	for _, id := range webhookIDs {
		if id != task.ID.String() {
			t.Errorf("X-Webhook-ID changed across retries: %q", id)
		}
	}

	// A failed task is terminal
	results, err := disp.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("failed task must not be re-claimed, got %d results", len(results))
	}
}

func TestRetrySucceedsEventually(t *testing.T) {
	businessID := uuid.New()
	task := pendingTask(businessID, models.OrderPaid)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore(task)
	subs := &fakeSubs{subs: []models.WebhookSubscription{
		subscription(businessID, server.URL, models.OrderPaid),
	}}
	disp := newTestDispatcher(store, subs)

	for sweep := 0; sweep < 3; sweep++ {
		if _, err := disp.ProcessBatch(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	final := store.task(task.ID)
	if final.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", final.Status)
	}
	if final.Attempts != 2 {
		t.Errorf("attempts = %d, want 2 (failed tries only)", final.Attempts)
	}
}

func TestCompletedTaskNotReprocessed(t *testing.T) {
	businessID := uuid.New()
	task := pendingTask(businessID, models.OrderPaid)

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore(task)
	subs := &fakeSubs{subs: []models.WebhookSubscription{
		subscription(businessID, server.URL, models.OrderPaid),
	}}
	disp := newTestDispatcher(store, subs)

	if _, err := disp.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results, err := disp.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 0 {
		t.Errorf("completed task re-claimed by second sweep")
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("expected 1 delivery total, got %d", n)
	}
}

func TestConcurrentSweepsDeliverOnce(t *testing.T) {
	businessID := uuid.New()
	task := pendingTask(businessID, models.OrderPaid)

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newFakeStore(task)
	subs := &fakeSubs{subs: []models.WebhookSubscription{
		subscription(businessID, server.URL, models.OrderPaid),
	}}
	disp := newTestDispatcher(store, subs)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			disp.ProcessBatch(context.Background())
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("concurrent sweeps delivered %d times, want 1", n)
	}
	final := store.task(task.ID)
	if final.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", final.Status)
	}
	if final.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", final.Attempts)
	}
}

func TestProductScopedSubscriptions(t *testing.T) {
	businessID := uuid.New()
	productID := uuid.New()
	otherProduct := uuid.New()

	task := pendingTask(businessID, models.ProductPurchased)
	task.ProductID = &productID

	var mu sync.Mutex
	hits := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	unscoped := subscription(businessID, server.URL+"/all", models.ProductPurchased)
	scoped := subscription(businessID, server.URL+"/scoped", models.ProductPurchased)
	scoped.ProductID = &productID
	mismatched := subscription(businessID, server.URL+"/other", models.ProductPurchased)
	mismatched.ProductID = &otherProduct

	store := newFakeStore(task)
	subs := &fakeSubs{subs: []models.WebhookSubscription{unscoped, scoped, mismatched}}

	if _, err := newTestDispatcher(store, subs).ProcessBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if hits["/all"] != 1 {
		t.Errorf("null-scope subscription hit %d times, want 1", hits["/all"])
	}
	if hits["/scoped"] != 1 {
		t.Errorf("matching product scope hit %d times, want 1", hits["/scoped"])
	}
	if hits["/other"] != 0 {
		t.Errorf("mismatched product scope hit %d times, want 0", hits["/other"])
	}
	if store.logCount() != 2 {
		t.Errorf("delivery log entries = %d, want 2", store.logCount())
	}
}

func TestProcessTaskNotClaimable(t *testing.T) {
	task := pendingTask(uuid.New(), models.OrderPaid)
	task.Status = models.StatusCompleted
	store := newFakeStore(task)

	result, err := newTestDispatcher(store, &fakeSubs{}).ProcessTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("terminal task must not be claimable, got %+v", result)
	}
}

func TestSubscriptionFetchFailureReleasesTask(t *testing.T) {
	task := pendingTask(uuid.New(), models.OrderPaid)
	task.Attempts = 1
	store := newFakeStore(task)
	subs := &fakeSubs{err: context.DeadlineExceeded}

	results, err := newTestDispatcher(store, subs).ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	final := store.task(task.ID)
	if final.Status != models.StatusPending {
		t.Errorf("status = %s, want pending after resolve failure", final.Status)
	}
	if final.Attempts != 1 {
		t.Errorf("attempts = %d, resolve failure must not consume an attempt", final.Attempts)
	}
}
