package request

type CreateWebsite struct {
	Name              string `json:"name" validate:"required"`
	URL               string `json:"url" validate:"required"`
	BusinessAccountID string `json:"business_account_id" validate:"required"`
}

type UpdateWebsite struct {
	Name string `json:"name" validate:"required"`
}

type UpdateWidgetConfig struct {
	Theme        string `json:"theme" validate:"required,oneof=light dark"`
	PrimaryColor string `json:"primaryColor" validate:"required,hexcolor"`
	Position     string `json:"position" validate:"required,oneof=bottom-right bottom-left"`
	Greeting     string `json:"greeting" validate:"required,max=200"`
}

type UpdateKnowledgeBase struct {
	Content string `json:"content"`
	Summary string `json:"summary"`
}

// WidgetChat is the unauthenticated widget message. ConversationID and
// VisitorID are client-supplied correlation hints.
type WidgetChat struct {
	WebsiteID      string `json:"website_id" validate:"required"`
	ConversationID string `json:"conversation_id"`
	VisitorID      string `json:"visitor_id"`
	Message        string `json:"message" validate:"required,max=4000"`
}
