package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/sitehelper/internal/model"
	"github.com/edvin/sitehelper/internal/rbac"
)

// TeamService manages memberships within a business account and performs
// the permission checks the other services rely on. Checks always resolve
// against a freshly fetched row, never cached state.
type TeamService struct {
	db    DB
	audit *AuditService
}

func NewTeamService(db DB, audit *AuditService) *TeamService {
	return &TeamService{db: db, audit: audit}
}

const memberColumns = `id, business_account_id, user_id, role, status, invited_by, invited_at, joined_at`

func scanMember(row pgx.Row) (*model.TeamMember, error) {
	var m model.TeamMember
	err := row.Scan(&m.ID, &m.BusinessAccountID, &m.UserID, &m.Role, &m.Status, &m.InvitedBy, &m.InvitedAt, &m.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ActiveMember fetches the caller's active membership on the account.
// A missing or non-active row is a Forbidden, not a NotFound: non-members
// must not be able to probe which accounts exist.
func (s *TeamService) ActiveMember(ctx context.Context, accountID, userID string) (*model.TeamMember, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM team_members
		 WHERE business_account_id = $1 AND user_id = $2 AND status = 'active'`,
		accountID, userID)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, forbidden("you are not a member of this business account")
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// RequirePermission fetches the caller's active membership and checks the
// permission against its current role. Returns the membership on success.
func (s *TeamService) RequirePermission(ctx context.Context, accountID, userID string, perm rbac.Permission) (*model.TeamMember, error) {
	m, err := s.ActiveMember(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	if !rbac.HasPermission(m.Role, perm) {
		return nil, forbidden("your role does not allow %s", perm)
	}
	return m, nil
}

// List returns all members of the account. Requires view_team.
func (s *TeamService) List(ctx context.Context, accountID, actorUserID string) ([]model.TeamMember, error) {
	if _, err := s.RequirePermission(ctx, accountID, actorUserID, rbac.PermViewTeam); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+memberColumns+` FROM team_members
		 WHERE business_account_id = $1 ORDER BY invited_at`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.TeamMember
	for rows.Next() {
		var m model.TeamMember
		if err := rows.Scan(&m.ID, &m.BusinessAccountID, &m.UserID, &m.Role, &m.Status, &m.InvitedBy, &m.InvitedAt, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// getMember fetches a member row by id within the account.
func (s *TeamService) getMember(ctx context.Context, accountID, memberID string) (*model.TeamMember, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM team_members
		 WHERE id = $1 AND business_account_id = $2`, memberID, accountID)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: team member", ErrNotFound)
		}
		return nil, fmt.Errorf("get member %s: %w", memberID, err)
	}
	return m, nil
}

// checkTarget applies the rules shared by every member mutation: the actor
// needs manage_team plus role hierarchy over the target, the owner's row is
// untouchable, and nobody may target their own row (self-lockout guard,
// distinct from an ordinary permission check).
func (s *TeamService) checkTarget(ctx context.Context, accountID, actorUserID, memberID string) (actor, target *model.TeamMember, err error) {
	actor, err = s.RequirePermission(ctx, accountID, actorUserID, rbac.PermManageTeam)
	if err != nil {
		return nil, nil, err
	}

	target, err = s.getMember(ctx, accountID, memberID)
	if err != nil {
		return nil, nil, err
	}

	if target.Role == rbac.RoleOwner {
		return nil, nil, forbidden("the account owner cannot be modified or removed")
	}
	if target.UserID == actorUserID {
		return nil, nil, forbidden("you cannot modify or remove your own membership")
	}
	if !rbac.CanManageRole(actor.Role, target.Role) {
		return nil, nil, forbidden("your role cannot manage a %s", target.Role)
	}
	return actor, target, nil
}

// ChangeRole sets a member's role.
func (s *TeamService) ChangeRole(ctx context.Context, accountID, actorUserID, memberID string, newRole rbac.Role) (*model.TeamMember, error) {
	if newRole != rbac.RoleAdmin && newRole != rbac.RoleEditor {
		return nil, invalidInput("role must be 'admin' or 'editor'")
	}

	actor, target, err := s.checkTarget(ctx, accountID, actorUserID, memberID)
	if err != nil {
		return nil, err
	}
	if !rbac.CanManageRole(actor.Role, newRole) {
		return nil, forbidden("your role cannot assign %s", newRole)
	}

	_, err = s.db.Exec(ctx,
		`UPDATE team_members SET role = $1 WHERE id = $2`, newRole, target.ID)
	if err != nil {
		return nil, fmt.Errorf("update member role: %w", err)
	}
	target.Role = newRole

	s.audit.Record(accountID, actorUserID, "team_member.role_changed", "team_member", &target.ID,
		map[string]string{"user_id": target.UserID, "role": string(newRole)})
	return target, nil
}

// Remove deletes a member's row from the account.
func (s *TeamService) Remove(ctx context.Context, accountID, actorUserID, memberID string) error {
	_, target, err := s.checkTarget(ctx, accountID, actorUserID, memberID)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `DELETE FROM team_members WHERE id = $1`, target.ID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}

	s.audit.Record(accountID, actorUserID, "team_member.removed", "team_member", &target.ID,
		map[string]string{"user_id": target.UserID})
	return nil
}

// Suspend marks a member suspended without deleting the row.
func (s *TeamService) Suspend(ctx context.Context, accountID, actorUserID, memberID string) (*model.TeamMember, error) {
	return s.setStatus(ctx, accountID, actorUserID, memberID, model.MemberSuspended, "team_member.suspended")
}

// Reactivate restores a suspended member to active.
func (s *TeamService) Reactivate(ctx context.Context, accountID, actorUserID, memberID string) (*model.TeamMember, error) {
	return s.setStatus(ctx, accountID, actorUserID, memberID, model.MemberActive, "team_member.reactivated")
}

func (s *TeamService) setStatus(ctx context.Context, accountID, actorUserID, memberID string, status model.MemberStatus, action string) (*model.TeamMember, error) {
	_, target, err := s.checkTarget(ctx, accountID, actorUserID, memberID)
	if err != nil {
		return nil, err
	}
	if target.Status == status {
		return target, nil
	}

	_, err = s.db.Exec(ctx,
		`UPDATE team_members SET status = $1 WHERE id = $2`, status, target.ID)
	if err != nil {
		if isUniqueViolation(err) {
			// Reactivating when another active row appeared in the meantime.
			return nil, fmt.Errorf("%w: user already has an active membership", ErrConflict)
		}
		return nil, fmt.Errorf("update member status: %w", err)
	}
	target.Status = status

	s.audit.Record(accountID, actorUserID, action, "team_member", &target.ID,
		map[string]string{"user_id": target.UserID, "status": string(status)})
	return target, nil
}
