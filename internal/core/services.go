package core

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/edvin/sitehelper/internal/email"
	"github.com/edvin/sitehelper/internal/llm"
	"github.com/edvin/sitehelper/internal/scraper"
)

// DB defines the database operations used by services.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EmailSender delivers invitation emails. *email.Client satisfies this.
type EmailSender interface {
	SendInvitation(ctx context.Context, params email.InvitationParams) error
}

// PageScraper extracts knowledge base content from a URL.
// *scraper.Scraper satisfies this.
type PageScraper interface {
	Scrape(ctx context.Context, url string) (*scraper.Result, error)
}

type Services struct {
	Auth            *AuthService
	BusinessAccount *BusinessAccountService
	Team            *TeamService
	Invitation      *InvitationService
	Website         *WebsiteService
	KnowledgeBase   *KnowledgeBaseService
	Conversation    *ConversationService
	Chat            *ChatService
	Audit           *AuditService
}

// Deps carries the external collaborators the services are wired with.
type Deps struct {
	Email     EmailSender
	LLM       *llm.Client
	Scraper   PageScraper
	AppURL    string
	JWTSecret string
	JWTIssuer string
}

func NewServices(db DB, logger zerolog.Logger, deps Deps) *Services {
	audit := NewAuditService(db, logger)
	team := NewTeamService(db, audit)

	return &Services{
		Auth:            NewAuthService(db, deps.JWTSecret, deps.JWTIssuer),
		BusinessAccount: NewBusinessAccountService(db, team, audit),
		Team:            team,
		Invitation:      NewInvitationService(db, team, audit, deps.Email, deps.AppURL, logger),
		Website:         NewWebsiteService(db, team, audit, deps.Scraper),
		KnowledgeBase:   NewKnowledgeBaseService(db, team, audit),
		Conversation:    NewConversationService(db, team, audit),
		Chat:            NewChatService(db, deps.LLM, logger),
		Audit:           audit,
	}
}

// Close flushes background writers.
func (s *Services) Close() {
	s.Audit.Close()
}
