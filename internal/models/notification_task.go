package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task status values. pending -> in_flight is the claim step; in_flight
// releases to completed, failed, or back to pending for a later sweep.
// completed and failed are terminal.
const (
	StatusPending   = "pending"
	StatusInFlight  = "in_flight"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type NotificationTask struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID    uuid.UUID       `gorm:"type:uuid;not null" json:"business_id"`
	EventType     EventType       `gorm:"not null" json:"event_type"`
	OrderID       uuid.UUID       `gorm:"type:uuid;not null" json:"order_id"`
	ProductID     *uuid.UUID      `gorm:"type:uuid" json:"product_id"`
	Payload       json.RawMessage `gorm:"type:jsonb;not null" json:"payload"`
	Status        string          `gorm:"not null;default:'pending'" json:"status"`
	Attempts      int             `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts   int             `gorm:"not null;default:3" json:"max_attempts"`
	LastAttemptAt *time.Time      `json:"last_attempt_at"`
	LastError     *string         `json:"last_error"`
	CreatedAt     time.Time       `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (NotificationTask) TableName() string {
	return "notification_tasks"
}

// TaskMessage is the message published to the delivery queue after a task
// is enqueued. The sweep remains the durable fallback if publishing fails.
type TaskMessage struct {
	TaskID string `json:"task_id"`
}
