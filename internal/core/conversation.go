package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/sitehelper/internal/model"
	"github.com/edvin/sitehelper/internal/rbac"
)

type ConversationService struct {
	db    DB
	team  *TeamService
	audit *AuditService
}

func NewConversationService(db DB, team *TeamService, audit *AuditService) *ConversationService {
	return &ConversationService{db: db, team: team, audit: audit}
}

// websiteAccount resolves a website to its owning account and checks perm.
func (s *ConversationService) websiteAccount(ctx context.Context, websiteID, actorUserID string, perm rbac.Permission) (string, error) {
	var accountID string
	err := s.db.QueryRow(ctx,
		`SELECT business_account_id FROM websites WHERE id = $1`, websiteID).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: website", ErrNotFound)
		}
		return "", fmt.Errorf("get website %s: %w", websiteID, err)
	}
	if _, err := s.team.RequirePermission(ctx, accountID, actorUserID, perm); err != nil {
		return "", err
	}
	return accountID, nil
}

// ListByWebsite returns the website's conversations, most recent activity
// first. Requires view_conversations.
func (s *ConversationService) ListByWebsite(ctx context.Context, websiteID, actorUserID string) ([]model.Conversation, error) {
	if _, err := s.websiteAccount(ctx, websiteID, actorUserID, rbac.PermViewConversations); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, website_id, visitor_id, started_at, last_message_at, metadata
		 FROM conversations WHERE website_id = $1 ORDER BY last_message_at DESC`, websiteID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.WebsiteID, &c.VisitorID, &c.StartedAt, &c.LastMessageAt, &c.Metadata); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return conversations, nil
}

// Messages returns a conversation's transcript in order. Requires
// view_conversations in the owning account, resolved through the
// conversation's website.
func (s *ConversationService) Messages(ctx context.Context, conversationID, actorUserID string) ([]model.Message, error) {
	var websiteID string
	err := s.db.QueryRow(ctx,
		`SELECT website_id FROM conversations WHERE id = $1`, conversationID).Scan(&websiteID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: conversation", ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation %s: %w", conversationID, err)
	}
	if _, err := s.websiteAccount(ctx, websiteID, actorUserID, rbac.PermViewConversations); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// Delete removes a conversation and its messages. Requires
// delete_conversations, which editors do not hold.
func (s *ConversationService) Delete(ctx context.Context, conversationID, actorUserID string) error {
	var websiteID string
	err := s.db.QueryRow(ctx,
		`SELECT website_id FROM conversations WHERE id = $1`, conversationID).Scan(&websiteID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: conversation", ErrNotFound)
		}
		return fmt.Errorf("get conversation %s: %w", conversationID, err)
	}
	accountID, err := s.websiteAccount(ctx, websiteID, actorUserID, rbac.PermDeleteConversations)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID); err != nil {
		return fmt.Errorf("delete conversation %s: %w", conversationID, err)
	}

	s.audit.Record(accountID, actorUserID, "conversation.deleted", "conversation", &conversationID, nil)
	return nil
}
