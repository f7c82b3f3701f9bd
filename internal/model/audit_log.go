package model

import (
	"encoding/json"
	"time"
)

// AuditLog records one permission-gated action within a business account.
type AuditLog struct {
	ID                string          `json:"id" db:"id"`
	BusinessAccountID string          `json:"business_account_id" db:"business_account_id"`
	UserID            string          `json:"user_id" db:"user_id"`
	Action            string          `json:"action" db:"action"`
	ResourceType      string          `json:"resource_type" db:"resource_type"`
	ResourceID        *string         `json:"resource_id,omitempty" db:"resource_id"`
	Details           json.RawMessage `json:"details" db:"details"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}
