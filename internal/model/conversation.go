package model

import (
	"encoding/json"
	"time"
)

// MessageRole is the author of a chat message.
type MessageRole string

const (
	MessageUser      MessageRole = "user"
	MessageAssistant MessageRole = "assistant"
)

func (r MessageRole) Valid() bool {
	return r == MessageUser || r == MessageAssistant
}

// Conversation is one visitor's chat session with a website's widget.
// VisitorID is a correlation hint only, never an authorization input.
type Conversation struct {
	ID            string          `json:"id" db:"id"`
	WebsiteID     string          `json:"website_id" db:"website_id"`
	VisitorID     string          `json:"visitor_id" db:"visitor_id"`
	StartedAt     time.Time       `json:"started_at" db:"started_at"`
	LastMessageAt time.Time       `json:"last_message_at" db:"last_message_at"`
	Metadata      json.RawMessage `json:"metadata" db:"metadata"`
}

type Message struct {
	ID             string      `json:"id" db:"id"`
	ConversationID string      `json:"conversation_id" db:"conversation_id"`
	Role           MessageRole `json:"role" db:"role"`
	Content        string      `json:"content" db:"content"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}
