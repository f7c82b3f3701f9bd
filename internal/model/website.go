package model

import (
	"encoding/json"
	"time"
)

// WebsiteStatus tracks the scrape pipeline for a registered website.
type WebsiteStatus string

const (
	WebsitePending    WebsiteStatus = "pending"
	WebsiteProcessing WebsiteStatus = "processing"
	WebsiteCompleted  WebsiteStatus = "completed"
	WebsiteFailed     WebsiteStatus = "failed"
)

func (s WebsiteStatus) Valid() bool {
	switch s {
	case WebsitePending, WebsiteProcessing, WebsiteCompleted, WebsiteFailed:
		return true
	}
	return false
}

// WidgetConfig is the embeddable chat widget's appearance settings.
type WidgetConfig struct {
	Theme        string `json:"theme"`
	PrimaryColor string `json:"primaryColor"`
	Position     string `json:"position"`
	Greeting     string `json:"greeting"`
}

// DefaultWidgetConfig returns the widget settings applied to new websites.
func DefaultWidgetConfig() WidgetConfig {
	return WidgetConfig{
		Theme:        "light",
		PrimaryColor: "#667eea",
		Position:     "bottom-right",
		Greeting:     "Hi! How can I help you today?",
	}
}

type Website struct {
	ID                string        `json:"id" db:"id"`
	BusinessAccountID string        `json:"business_account_id" db:"business_account_id"`
	Name              string        `json:"name" db:"name"`
	URL               string        `json:"url" db:"url"`
	Status            WebsiteStatus `json:"status" db:"status"`
	ScrapeError       *string       `json:"scrape_error,omitempty" db:"scrape_error"`
	WidgetConfig      WidgetConfig  `json:"widget_config" db:"widget_config"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// WidgetConfigJSON marshals the widget config for storage in a JSONB column.
func (w *Website) WidgetConfigJSON() json.RawMessage {
	b, _ := json.Marshal(w.WidgetConfig)
	return b
}
