package model

import (
	"encoding/json"
	"time"
)

// KnowledgeBase holds the scraped text content a website's chat assistant is
// grounded in. One row per website, created empty alongside it.
type KnowledgeBase struct {
	ID        string          `json:"id" db:"id"`
	WebsiteID string          `json:"website_id" db:"website_id"`
	Content   string          `json:"content" db:"content"`
	Summary   string          `json:"summary" db:"summary"`
	Metadata  json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
