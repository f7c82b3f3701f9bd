package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/sitehelper/internal/model"
	"github.com/edvin/sitehelper/internal/platform"
	"github.com/edvin/sitehelper/internal/rbac"
)

// AuditService is an async audit log writer plus the read-side query.
// Writes are fire-and-forget so a slow audit insert never blocks the
// operation being audited.
type AuditService struct {
	db     DB
	logger zerolog.Logger
	ch     chan model.AuditLog
}

func NewAuditService(db DB, logger zerolog.Logger) *AuditService {
	s := &AuditService{
		db:     db,
		logger: logger,
		ch:     make(chan model.AuditLog, 1024),
	}
	go s.drain()
	return s
}

func (s *AuditService) drain() {
	for entry := range s.ch {
		_, err := s.db.Exec(
			// context.Background since this is async
			context.Background(),
			`INSERT INTO audit_logs (id, business_account_id, user_id, action, resource_type, resource_id, details, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
			entry.ID, entry.BusinessAccountID, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID, entry.Details,
		)
		if err != nil {
			s.logger.Error().Err(err).Str("action", entry.Action).Msg("failed to write audit log")
		}
	}
}

// Close drains remaining entries and closes the channel.
func (s *AuditService) Close() {
	close(s.ch)
}

// Record enqueues one audit entry. Drops the entry if the buffer is full.
func (s *AuditService) Record(accountID, userID, action, resourceType string, resourceID *string, details any) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}
	entry := model.AuditLog{
		ID:                platform.NewID(),
		BusinessAccountID: accountID,
		UserID:            userID,
		Action:            action,
		ResourceType:      resourceType,
		ResourceID:        resourceID,
		Details:           detailsJSON,
	}
	select {
	case s.ch <- entry:
	default:
		s.logger.Warn().Str("action", action).Msg("audit buffer full, dropping entry")
	}
}

// List returns an account's audit trail, newest first. Requires view_audit_logs.
func (s *AuditService) List(ctx context.Context, team *TeamService, accountID, actorUserID string, limit int) ([]model.AuditLog, error) {
	if _, err := team.RequirePermission(ctx, accountID, actorUserID, rbac.PermViewAuditLogs); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, business_account_id, user_id, action, resource_type, resource_id, details, created_at
		 FROM audit_logs WHERE business_account_id = $1
		 ORDER BY created_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []model.AuditLog
	for rows.Next() {
		var l model.AuditLog
		if err := rows.Scan(&l.ID, &l.BusinessAccountID, &l.UserID, &l.Action, &l.ResourceType, &l.ResourceID, &l.Details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return logs, nil
}
