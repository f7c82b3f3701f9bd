package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/sitehelper/internal/model"
	"github.com/edvin/sitehelper/internal/rbac"
)

type KnowledgeBaseService struct {
	db    DB
	team  *TeamService
	audit *AuditService
}

func NewKnowledgeBaseService(db DB, team *TeamService, audit *AuditService) *KnowledgeBaseService {
	return &KnowledgeBaseService{db: db, team: team, audit: audit}
}

const knowledgeBaseColumns = `id, website_id, content, summary, metadata, created_at, updated_at`

// byWebsite loads the knowledge base for a website after checking the actor
// holds perm in the website's owning account.
func (s *KnowledgeBaseService) byWebsite(ctx context.Context, websiteID, actorUserID string, perm rbac.Permission) (*model.KnowledgeBase, string, error) {
	var accountID string
	err := s.db.QueryRow(ctx,
		`SELECT business_account_id FROM websites WHERE id = $1`, websiteID).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", fmt.Errorf("%w: website", ErrNotFound)
		}
		return nil, "", fmt.Errorf("get website %s: %w", websiteID, err)
	}

	if _, err := s.team.RequirePermission(ctx, accountID, actorUserID, perm); err != nil {
		return nil, "", err
	}

	var kb model.KnowledgeBase
	err = s.db.QueryRow(ctx,
		`SELECT `+knowledgeBaseColumns+` FROM knowledge_bases WHERE website_id = $1`, websiteID,
	).Scan(&kb.ID, &kb.WebsiteID, &kb.Content, &kb.Summary, &kb.Metadata, &kb.CreatedAt, &kb.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", fmt.Errorf("%w: knowledge base", ErrNotFound)
		}
		return nil, "", fmt.Errorf("get knowledge base for website %s: %w", websiteID, err)
	}
	return &kb, accountID, nil
}

// Get returns the website's knowledge base. Requires view_knowledge_bases.
func (s *KnowledgeBaseService) Get(ctx context.Context, websiteID, actorUserID string) (*model.KnowledgeBase, error) {
	kb, _, err := s.byWebsite(ctx, websiteID, actorUserID, rbac.PermViewKnowledgeBases)
	return kb, err
}

// Update replaces the content and summary by hand, for teams that curate
// instead of scraping. Requires edit_knowledge_bases.
func (s *KnowledgeBaseService) Update(ctx context.Context, websiteID, actorUserID, content, summary string) (*model.KnowledgeBase, error) {
	kb, accountID, err := s.byWebsite(ctx, websiteID, actorUserID, rbac.PermEditKnowledgeBases)
	if err != nil {
		return nil, err
	}

	kb.Content = content
	kb.Summary = summary
	kb.UpdatedAt = time.Now()
	_, err = s.db.Exec(ctx,
		`UPDATE knowledge_bases SET content = $1, summary = $2, updated_at = $3 WHERE id = $4`,
		kb.Content, kb.Summary, kb.UpdatedAt, kb.ID)
	if err != nil {
		return nil, fmt.Errorf("update knowledge base %s: %w", kb.ID, err)
	}

	s.audit.Record(accountID, actorUserID, "knowledge_base.updated", "knowledge_base", &kb.ID, nil)
	return kb, nil
}

// Clear empties the content while keeping the row. Requires
// delete_knowledge_bases, which editors do not hold.
func (s *KnowledgeBaseService) Clear(ctx context.Context, websiteID, actorUserID string) error {
	kb, accountID, err := s.byWebsite(ctx, websiteID, actorUserID, rbac.PermDeleteKnowledgeBases)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`UPDATE knowledge_bases SET content = '', summary = '', metadata = '{}', updated_at = $1 WHERE id = $2`,
		time.Now(), kb.ID)
	if err != nil {
		return fmt.Errorf("clear knowledge base %s: %w", kb.ID, err)
	}

	s.audit.Record(accountID, actorUserID, "knowledge_base.cleared", "knowledge_base", &kb.ID, nil)
	return nil
}
