package delivery

import (
	"fmt"

	"github.com/storehook/webhook-svc/internal/models"
)

// Outcome is the task-level state resolved after one delivery pass
type Outcome struct {
	Status    string
	Attempts  int
	LastError *string
}

// ResolvePassOutcome resolves the task-level outcome of one delivery pass.
// results holds one entry per matching subscription; an empty slice means no
// subscription matched and the task completes with nothing to deliver.
//
// Attempts counts failed passes only: a successful pass never increments it.
// A task is failed once a pass fails and the incremented count reaches
// maxAttempts; otherwise it returns to pending for a later sweep.
func ResolvePassOutcome(results []*Result, attempts, maxAttempts int) Outcome {
	if len(results) == 0 {
		return Outcome{
			Status:   models.StatusCompleted,
			Attempts: attempts,
		}
	}

	failed := 0
	var firstCause string
	for _, result := range results {
		if result.Succeeded() {
			continue
		}
		failed++
		if firstCause == "" {
			firstCause = describeFailure(result)
		}
	}

	if failed == 0 {
		return Outcome{
			Status:   models.StatusCompleted,
			Attempts: attempts,
		}
	}

	newAttempts := attempts + 1
	errorMsg := fmt.Sprintf("%d/%d deliveries failed: %s", failed, len(results), firstCause)

	if newAttempts >= maxAttempts {
		errorMsg = fmt.Sprintf("max attempts reached: %s", errorMsg)
		return Outcome{
			Status:    models.StatusFailed,
			Attempts:  newAttempts,
			LastError: &errorMsg,
		}
	}

	return Outcome{
		Status:    models.StatusPending,
		Attempts:  newAttempts,
		LastError: &errorMsg,
	}
}

func describeFailure(result *Result) string {
	if result.Err != nil {
		return fmt.Sprintf("network error: %v", result.Err)
	}
	if result.HTTPStatus != nil {
		return fmt.Sprintf("HTTP %d", *result.HTTPStatus)
	}
	return "no HTTP status code received"
}
