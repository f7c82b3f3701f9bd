package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/sitehelper/internal/llm"
	"github.com/edvin/sitehelper/internal/model"
	"github.com/edvin/sitehelper/internal/platform"
)

const (
	// Knowledge base text is truncated before prompting to keep the
	// request under the model's context limit.
	maxKnowledgeChars = 8000
	// History sent to the model per turn; older messages are dropped.
	maxHistoryMessages = 10

	fallbackAnswer = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."
)

// ChatService is the visitor-facing relay: it persists the visitor's
// message, asks the model grounded in the website's knowledge base, and
// persists the reply. Visitors are unauthenticated, so every lookup is
// scoped through the website id baked into the widget embed.
type ChatService struct {
	db     DB
	llm    *llm.Client
	logger zerolog.Logger
}

func NewChatService(db DB, client *llm.Client, logger zerolog.Logger) *ChatService {
	return &ChatService{db: db, llm: client, logger: logger}
}

// ChatReply is the widget-facing result of one visitor turn.
type ChatReply struct {
	ConversationID string `json:"conversation_id"`
	Answer         string `json:"answer"`
}

// HandleVisitorMessage runs one turn of a widget conversation. A nil or
// empty conversationID starts a new conversation; a supplied one must
// belong to the given website, otherwise the turn is rejected.
func (s *ChatService) HandleVisitorMessage(ctx context.Context, websiteID, conversationID, visitorID, content string) (*ChatReply, error) {
	if content == "" {
		return nil, invalidInput("message is required")
	}

	var siteName string
	var status model.WebsiteStatus
	err := s.db.QueryRow(ctx,
		`SELECT name, status FROM websites WHERE id = $1`, websiteID).Scan(&siteName, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: website", ErrNotFound)
		}
		return nil, fmt.Errorf("get website %s: %w", websiteID, err)
	}

	now := time.Now()
	if conversationID == "" {
		conversationID = platform.NewID()
		if visitorID == "" {
			visitorID = platform.NewID()
		}
		meta, _ := json.Marshal(map[string]string{"source": "widget"})
		_, err = s.db.Exec(ctx,
			`INSERT INTO conversations (id, website_id, visitor_id, started_at, last_message_at, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			conversationID, websiteID, visitorID, now, now, meta)
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
	} else {
		// The conversation id is client-supplied; bind it to the website
		// before trusting it.
		var ownerWebsiteID string
		err = s.db.QueryRow(ctx,
			`SELECT website_id FROM conversations WHERE id = $1`, conversationID).Scan(&ownerWebsiteID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: conversation", ErrNotFound)
			}
			return nil, fmt.Errorf("get conversation %s: %w", conversationID, err)
		}
		if ownerWebsiteID != websiteID {
			return nil, fmt.Errorf("%w: conversation", ErrNotFound)
		}
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		platform.NewID(), conversationID, model.MessageUser, content, now)
	if err != nil {
		return nil, fmt.Errorf("insert visitor message: %w", err)
	}

	answer := s.answer(ctx, websiteID, conversationID, siteName, content)

	_, err = s.db.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		platform.NewID(), conversationID, model.MessageAssistant, answer, time.Now())
	if err != nil {
		return nil, fmt.Errorf("insert assistant message: %w", err)
	}

	if _, err := s.db.Exec(ctx,
		`UPDATE conversations SET last_message_at = $1 WHERE id = $2`, time.Now(), conversationID); err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to bump conversation activity")
	}

	return &ChatReply{ConversationID: conversationID, Answer: answer}, nil
}

// answer produces the assistant's reply. Model failures degrade to a
// fixed apology so the widget never surfaces an error to the visitor.
func (s *ChatService) answer(ctx context.Context, websiteID, conversationID, siteName, question string) string {
	if s.llm == nil || !s.llm.Configured() {
		s.logger.Warn().Str("website_id", websiteID).Msg("llm not configured, returning fallback answer")
		return fallbackAnswer
	}

	var knowledge string
	err := s.db.QueryRow(ctx,
		`SELECT content FROM knowledge_bases WHERE website_id = $1`, websiteID).Scan(&knowledge)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn().Err(err).Str("website_id", websiteID).Msg("failed to load knowledge base for chat")
	}
	if len(knowledge) > maxKnowledgeChars {
		knowledge = knowledge[:maxKnowledgeChars]
	}

	messages := []llm.Message{{
		Role: "system",
		Content: fmt.Sprintf(
			"You are a helpful assistant for the website %q. Answer visitor questions using only the website content below. "+
				"If the answer is not in the content, say you don't know and suggest contacting the business directly.\n\nWebsite content:\n%s",
			siteName, knowledge),
	}}
	messages = append(messages, s.history(ctx, conversationID)...)
	messages = append(messages, llm.Message{Role: "user", Content: question})

	resp, err := s.llm.Chat(ctx, llm.ChatRequest{
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("website_id", websiteID).Msg("llm chat failed")
		return fallbackAnswer
	}
	answer := resp.Answer()
	if answer == "" {
		return fallbackAnswer
	}
	return answer
}

// history returns the most recent prior turns, oldest first. Errors are
// tolerated: a turn without history is still answerable.
func (s *ChatService) history(ctx context.Context, conversationID string) []llm.Message {
	rows, err := s.db.Query(ctx,
		`SELECT role, content FROM (
		   SELECT role, content, created_at FROM messages
		   WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT $2
		 ) recent ORDER BY created_at`, conversationID, maxHistoryMessages)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to load chat history")
		return nil
	}
	defer rows.Close()

	var history []llm.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			s.logger.Warn().Err(err).Msg("failed to scan chat history row")
			return nil
		}
		history = append(history, llm.Message{Role: role, Content: content})
	}
	return history
}

// WidgetBootstrap returns the public widget settings for a website. This
// is unauthenticated: it exposes only appearance config, never account data.
func (s *ChatService) WidgetBootstrap(ctx context.Context, websiteID string) (*model.WidgetConfig, error) {
	var cfg []byte
	err := s.db.QueryRow(ctx,
		`SELECT widget_config FROM websites WHERE id = $1`, websiteID).Scan(&cfg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: website", ErrNotFound)
		}
		return nil, fmt.Errorf("get widget config: %w", err)
	}

	config := model.DefaultWidgetConfig()
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &config); err != nil {
			return nil, fmt.Errorf("decode widget config: %w", err)
		}
	}
	return &config, nil
}
