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

type BusinessAccountService struct {
	db    DB
	team  *TeamService
	audit *AuditService
}

func NewBusinessAccountService(db DB, team *TeamService, audit *AuditService) *BusinessAccountService {
	return &BusinessAccountService{db: db, team: team, audit: audit}
}

// Get returns the account. Any active member may read it.
func (s *BusinessAccountService) Get(ctx context.Context, accountID, actorUserID string) (*model.BusinessAccount, error) {
	if _, err := s.team.ActiveMember(ctx, accountID, actorUserID); err != nil {
		return nil, err
	}

	var acc model.BusinessAccount
	err := s.db.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at, updated_at FROM business_accounts WHERE id = $1`, accountID,
	).Scan(&acc.ID, &acc.Name, &acc.OwnerID, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: business account", ErrNotFound)
		}
		return nil, fmt.Errorf("get business account %s: %w", accountID, err)
	}
	return &acc, nil
}

// ListForUser returns every account where the user holds an active membership.
func (s *BusinessAccountService) ListForUser(ctx context.Context, userID string) ([]model.BusinessAccount, error) {
	rows, err := s.db.Query(ctx,
		`SELECT b.id, b.name, b.owner_id, b.created_at, b.updated_at
		 FROM business_accounts b
		 JOIN team_members m ON m.business_account_id = b.id
		 WHERE m.user_id = $1 AND m.status = 'active'
		 ORDER BY b.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list business accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.BusinessAccount
	for rows.Next() {
		var acc model.BusinessAccount
		if err := rows.Scan(&acc.ID, &acc.Name, &acc.OwnerID, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan business account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate business accounts: %w", err)
	}
	return accounts, nil
}

// UpdateName renames the account. Requires manage_billing.
func (s *BusinessAccountService) UpdateName(ctx context.Context, accountID, actorUserID, name string) (*model.BusinessAccount, error) {
	if _, err := s.team.RequirePermission(ctx, accountID, actorUserID, rbac.PermManageBilling); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, invalidInput("business name is required")
	}

	var acc model.BusinessAccount
	err := s.db.QueryRow(ctx,
		`UPDATE business_accounts SET name = $1, updated_at = $2 WHERE id = $3
		 RETURNING id, name, owner_id, created_at, updated_at`,
		name, time.Now(), accountID,
	).Scan(&acc.ID, &acc.Name, &acc.OwnerID, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: business account", ErrNotFound)
		}
		return nil, fmt.Errorf("update business account %s: %w", accountID, err)
	}

	s.audit.Record(accountID, actorUserID, "account.renamed", "business_account", &accountID,
		map[string]string{"name": name})
	return &acc, nil
}

// Delete removes the account and everything under it. Requires
// delete_account, which only the owner holds.
func (s *BusinessAccountService) Delete(ctx context.Context, accountID, actorUserID string) error {
	if _, err := s.team.RequirePermission(ctx, accountID, actorUserID, rbac.PermDeleteAccount); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM business_accounts WHERE id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("delete business account %s: %w", accountID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: business account", ErrNotFound)
	}
	return nil
}
