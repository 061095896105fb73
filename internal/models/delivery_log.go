package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeliveryLog is the append-only record of one HTTP delivery attempt to one
// subscription. TaskID is nil for direct (queue-bypassing) sends.
// ResponseStatus 0 means no response was received (network failure).
type DeliveryLog struct {
	ID             int64           `gorm:"primary_key;autoIncrement" json:"id"`
	SubscriptionID uuid.UUID       `gorm:"type:uuid;not null" json:"subscription_id"`
	TaskID         *uuid.UUID      `gorm:"type:uuid" json:"task_id"`
	OrderID        uuid.UUID       `gorm:"type:uuid;not null" json:"order_id"`
	ProductID      *uuid.UUID      `gorm:"type:uuid" json:"product_id"`
	RequestPayload json.RawMessage `gorm:"type:jsonb" json:"request_payload"`
	ResponseStatus int             `gorm:"not null;default:0" json:"response_status"`
	ResponseBody   string          `gorm:"type:text" json:"response_body"`
	SentAt         time.Time       `gorm:"not null;default:now()" json:"sent_at"`
}

func (DeliveryLog) TableName() string {
	return "delivery_logs"
}
