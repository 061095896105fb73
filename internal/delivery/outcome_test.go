package delivery

import (
	"errors"
	"strings"
	"testing"

	"github.com/storehook/webhook-svc/internal/models"
)

func intPtr(v int) *int {
	return &v
}

func TestResolvePassOutcomeNoSubscriptions(t *testing.T) {
	outcome := ResolvePassOutcome(nil, 0, 3)

	if outcome.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", outcome.Status)
	}
	if outcome.Attempts != 0 {
		t.Fatalf("zero-subscription pass must not consume an attempt, got %d", outcome.Attempts)
	}
	if outcome.LastError != nil {
		t.Fatalf("unexpected error: %s", *outcome.LastError)
	}
}

func TestResolvePassOutcomeAllSucceeded(t *testing.T) {
	results := []*Result{
		{HTTPStatus: intPtr(200)},
		{HTTPStatus: intPtr(204)},
	}

	outcome := ResolvePassOutcome(results, 2, 3)

	if outcome.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", outcome.Status)
	}
	if outcome.Attempts != 2 {
		t.Fatalf("success must not increment attempts, got %d", outcome.Attempts)
	}
}

func TestResolvePassOutcomeFailureStaysPending(t *testing.T) {
	results := []*Result{
		{HTTPStatus: intPtr(500)},
	}

	outcome := ResolvePassOutcome(results, 0, 3)

	if outcome.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", outcome.Status)
	}
	if outcome.Attempts != 1 {
		t.Fatalf("expected attempts 1, got %d", outcome.Attempts)
	}
	if outcome.LastError == nil || !strings.Contains(*outcome.LastError, "HTTP 500") {
		t.Fatalf("expected HTTP 500 in error, got %v", outcome.LastError)
	}
}

func TestResolvePassOutcomeFailsAtMaxAttempts(t *testing.T) {
	results := []*Result{
		{HTTPStatus: intPtr(500)},
	}

	outcome := ResolvePassOutcome(results, 2, 3)

	if outcome.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", outcome.Status)
	}
	if outcome.Attempts != 3 {
		t.Fatalf("expected attempts 3, got %d", outcome.Attempts)
	}
	if outcome.LastError == nil || !strings.Contains(*outcome.LastError, "max attempts reached") {
		t.Fatalf("expected max attempts in error, got %v", outcome.LastError)
	}
}

func TestResolvePassOutcomeSuccessAfterFailures(t *testing.T) {
	// Two failed sweeps already happened, the third try gets a 200
	results := []*Result{
		{HTTPStatus: intPtr(200)},
	}

	outcome := ResolvePassOutcome(results, 2, 3)

	if outcome.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", outcome.Status)
	}
	if outcome.Attempts != 2 {
		t.Fatalf("attempts counts failed tries only, got %d", outcome.Attempts)
	}
}

func TestResolvePassOutcomePartialFailure(t *testing.T) {
	results := []*Result{
		{HTTPStatus: intPtr(200)},
		{HTTPStatus: intPtr(502)},
	}

	outcome := ResolvePassOutcome(results, 0, 3)

	if outcome.Status != models.StatusPending {
		t.Fatalf("partial failure must stay pending, got %s", outcome.Status)
	}
	if outcome.LastError == nil || !strings.Contains(*outcome.LastError, "1/2 deliveries failed") {
		t.Fatalf("expected failure ratio in error, got %v", outcome.LastError)
	}
}

func TestResolvePassOutcomeNetworkError(t *testing.T) {
	results := []*Result{
		{Err: errors.New("connection refused")},
	}

	outcome := ResolvePassOutcome(results, 0, 3)

	if outcome.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", outcome.Status)
	}
	if outcome.LastError == nil || !strings.Contains(*outcome.LastError, "network error") {
		t.Fatalf("expected network error cause, got %v", outcome.LastError)
	}
}
