package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/sitehelper/internal/email"
	"github.com/edvin/sitehelper/internal/model"
	"github.com/edvin/sitehelper/internal/platform"
	"github.com/edvin/sitehelper/internal/rbac"
)

const invitationTTL = 7 * 24 * time.Hour

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// InvitationService issues, accepts, revokes, and re-delivers invitations.
type InvitationService struct {
	db     DB
	team   *TeamService
	audit  *AuditService
	email  EmailSender
	appURL string
	logger zerolog.Logger
}

func NewInvitationService(db DB, team *TeamService, audit *AuditService, sender EmailSender, appURL string, logger zerolog.Logger) *InvitationService {
	return &InvitationService{
		db:     db,
		team:   team,
		audit:  audit,
		email:  sender,
		appURL: appURL,
		logger: logger,
	}
}

const invitationColumns = `id, business_account_id, email, role, invited_by, token, expires_at, status, accepted_at, created_at`

func scanInvitation(row pgx.Row) (*model.Invitation, error) {
	var inv model.Invitation
	err := row.Scan(&inv.ID, &inv.BusinessAccountID, &inv.Email, &inv.Role, &inv.InvitedBy,
		&inv.Token, &inv.ExpiresAt, &inv.Status, &inv.AcceptedAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Issue validates the request, persists a pending invitation, and delivers
// the acceptance email. Preconditions are checked in order; the first
// failure wins and nothing is mutated before all checks pass.
func (s *InvitationService) Issue(ctx context.Context, accountID, actorUserID, toEmail string, role rbac.Role) (*model.Invitation, error) {
	// 1. Active membership with manage_team.
	if _, err := s.team.RequirePermission(ctx, accountID, actorUserID, rbac.PermManageTeam); err != nil {
		return nil, err
	}

	// 2. Only admin and editor can be granted by invitation.
	if !role.Invitable() {
		return nil, invalidInput("role must be 'admin' or 'editor'")
	}

	// 3. Address syntax.
	if !emailRegex.MatchString(toEmail) {
		return nil, invalidInput("invalid email format")
	}

	// 4. No pending invitation for the same (account, email).
	var existingID string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM invitations
		 WHERE business_account_id = $1 AND email = $2 AND status = 'pending'`,
		accountID, toEmail).Scan(&existingID)
	if err == nil {
		return nil, fmt.Errorf("%w: an invitation has already been sent to this email", ErrConflict)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check pending invitation: %w", err)
	}

	now := time.Now()
	inv := &model.Invitation{
		ID:                platform.NewID(),
		BusinessAccountID: accountID,
		Email:             toEmail,
		Role:              role,
		InvitedBy:         actorUserID,
		Token:             platform.NewToken(),
		ExpiresAt:         now.Add(invitationTTL),
		Status:            model.InvitationPending,
		CreatedAt:         now,
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO invitations (id, business_account_id, email, role, invited_by, token, expires_at, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.BusinessAccountID, inv.Email, inv.Role, inv.InvitedBy,
		inv.Token, inv.ExpiresAt, inv.Status, inv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent issuance for the same pair.
			return nil, fmt.Errorf("%w: an invitation has already been sent to this email", ErrConflict)
		}
		return nil, fmt.Errorf("insert invitation: %w", err)
	}

	if err := s.deliver(ctx, inv); err != nil {
		var apiErr *email.APIError
		if errors.As(err, &apiErr) {
			// Definitive rejection: the invitee was never notified and the
			// token would be lost forever, so compensate the insert away.
			if _, delErr := s.db.Exec(ctx, `DELETE FROM invitations WHERE id = $1`, inv.ID); delErr != nil {
				s.logger.Error().Err(delErr).Str("invitation_id", inv.ID).Msg("failed to compensate invitation after delivery rejection")
			}
			return nil, fmt.Errorf("%w: failed to send invitation email", ErrDeliveryFailed)
		}
		// Ambiguous failure: the email may have gone out. Keep the row so
		// the link stays valid; the admin can resend.
		s.logger.Warn().Err(err).Str("invitation_id", inv.ID).Msg("ambiguous invitation delivery failure, keeping invitation")
		return nil, fmt.Errorf("%w: invitation email delivery could not be confirmed, try resending", ErrDeliveryFailed)
	}

	s.audit.Record(accountID, actorUserID, "invitation.sent", "invitation", &inv.ID,
		map[string]string{"email": inv.Email, "role": string(inv.Role)})
	return inv, nil
}

func (s *InvitationService) deliver(ctx context.Context, inv *model.Invitation) error {
	name, err := s.accountName(ctx, inv.BusinessAccountID)
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", inv.BusinessAccountID).Msg("falling back to generic team name in invitation email")
		name = "a team"
	}
	return s.email.SendInvitation(ctx, email.InvitationParams{
		To:           inv.Email,
		Role:         string(inv.Role),
		BusinessName: name,
		InviteLink:   fmt.Sprintf("%s/accept-invite/%s", s.appURL, inv.Token),
		ExpiresAt:    inv.ExpiresAt,
	})
}

func (s *InvitationService) accountName(ctx context.Context, accountID string) (string, error) {
	var name string
	err := s.db.QueryRow(ctx, `SELECT name FROM business_accounts WHERE id = $1`, accountID).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("get account name: %w", err)
	}
	return name, nil
}

// AcceptResult is the successful outcome of an acceptance: the new
// membership plus the account identity for display.
type AcceptResult struct {
	Member  *model.TeamMember
	Account *model.BusinessAccount
}

// Accept resolves a token to a pending invitation and atomically promotes
// it into an active membership. Accepted and revoked invitations are
// indistinguishable from absent ones to avoid leaking their state.
func (s *InvitationService) Accept(ctx context.Context, token, userID string) (*AcceptResult, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token = $1 AND status = 'pending'`, token)
	inv, err := scanInvitation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invitation not found or already used", ErrNotFound)
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}

	now := time.Now()
	if inv.Expired(now) {
		// Persist the lazily detected transition even though the call fails.
		if _, err := s.db.Exec(ctx,
			`UPDATE invitations SET status = 'expired' WHERE id = $1`, inv.ID); err != nil {
			s.logger.Error().Err(err).Str("invitation_id", inv.ID).Msg("failed to mark invitation expired")
		}
		return nil, &ExpiredError{ExpiredAt: inv.ExpiresAt}
	}

	var existingID string
	err = s.db.QueryRow(ctx,
		`SELECT id FROM team_members
		 WHERE business_account_id = $1 AND user_id = $2 AND status = 'active'`,
		inv.BusinessAccountID, userID).Scan(&existingID)
	if err == nil {
		return nil, fmt.Errorf("%w: you are already a member of this business account", ErrAlreadyMember)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing membership: %w", err)
	}

	member := &model.TeamMember{
		ID:                platform.NewID(),
		BusinessAccountID: inv.BusinessAccountID,
		UserID:            userID,
		Role:              inv.Role,
		Status:            model.MemberActive,
		InvitedBy:         &inv.InvitedBy,
		InvitedAt:         inv.CreatedAt,
		JoinedAt:          &now,
	}

	// Membership insert and invitation transition are one unit: a crash
	// between them must not strand a pending invitation behind an existing
	// membership.
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin accept: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO team_members (id, business_account_id, user_id, role, status, invited_by, invited_at, joined_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		member.ID, member.BusinessAccountID, member.UserID, member.Role, member.Status,
		member.InvitedBy, member.InvitedAt, member.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent acceptance.
			return nil, fmt.Errorf("%w: you are already a member of this business account", ErrAlreadyMember)
		}
		return nil, fmt.Errorf("insert team member: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE invitations SET status = 'accepted', accepted_at = $1 WHERE id = $2`, now, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("mark invitation accepted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit accept: %w", err)
	}

	account := &model.BusinessAccount{ID: inv.BusinessAccountID}
	err = s.db.QueryRow(ctx,
		`SELECT id, name FROM business_accounts WHERE id = $1`, inv.BusinessAccountID).
		Scan(&account.ID, &account.Name)
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", inv.BusinessAccountID).Msg("accepted invitation but failed to load account details")
	}

	s.audit.Record(inv.BusinessAccountID, userID, "invitation.accepted", "invitation", &inv.ID,
		map[string]string{"role": string(inv.Role)})
	return &AcceptResult{Member: member, Account: account}, nil
}

// ListByAccount returns the account's invitations, newest first. Requires view_team.
func (s *InvitationService) ListByAccount(ctx context.Context, accountID, actorUserID string) ([]model.Invitation, error) {
	if _, err := s.team.RequirePermission(ctx, accountID, actorUserID, rbac.PermViewTeam); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE business_account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []model.Invitation
	for rows.Next() {
		var inv model.Invitation
		if err := rows.Scan(&inv.ID, &inv.BusinessAccountID, &inv.Email, &inv.Role, &inv.InvitedBy,
			&inv.Token, &inv.ExpiresAt, &inv.Status, &inv.AcceptedAt, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitations: %w", err)
	}
	return invitations, nil
}

// getPending fetches a pending invitation by id after a manage_team check.
// Terminal invitations surface as NotFound: finality is not negotiable.
func (s *InvitationService) getPending(ctx context.Context, invitationID, actorUserID string) (*model.Invitation, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, invitationID)
	inv, err := scanInvitation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invitation", ErrNotFound)
		}
		return nil, fmt.Errorf("get invitation %s: %w", invitationID, err)
	}

	if _, err := s.team.RequirePermission(ctx, inv.BusinessAccountID, actorUserID, rbac.PermManageTeam); err != nil {
		return nil, err
	}
	if inv.Status != model.InvitationPending {
		return nil, fmt.Errorf("%w: invitation is no longer pending", ErrNotFound)
	}
	return inv, nil
}

// Revoke transitions a pending invitation to revoked.
func (s *InvitationService) Revoke(ctx context.Context, invitationID, actorUserID string) (*model.Invitation, error) {
	inv, err := s.getPending(ctx, invitationID, actorUserID)
	if err != nil {
		return nil, err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE invitations SET status = 'revoked' WHERE id = $1 AND status = 'pending'`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("revoke invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: invitation is no longer pending", ErrNotFound)
	}
	inv.Status = model.InvitationRevoked

	s.audit.Record(inv.BusinessAccountID, actorUserID, "invitation.revoked", "invitation", &inv.ID,
		map[string]string{"email": inv.Email})
	return inv, nil
}

// Resend re-delivers a pending invitation's email. This is the recovery
// path for ambiguous delivery failures during issuance.
func (s *InvitationService) Resend(ctx context.Context, invitationID, actorUserID string) error {
	inv, err := s.getPending(ctx, invitationID, actorUserID)
	if err != nil {
		return err
	}
	if inv.Expired(time.Now()) {
		if _, err := s.db.Exec(ctx,
			`UPDATE invitations SET status = 'expired' WHERE id = $1`, inv.ID); err != nil {
			s.logger.Error().Err(err).Str("invitation_id", inv.ID).Msg("failed to mark invitation expired")
		}
		return &ExpiredError{ExpiredAt: inv.ExpiresAt}
	}

	if err := s.deliver(ctx, inv); err != nil {
		return fmt.Errorf("%w: failed to resend invitation email", ErrDeliveryFailed)
	}

	s.audit.Record(inv.BusinessAccountID, actorUserID, "invitation.resent", "invitation", &inv.ID,
		map[string]string{"email": inv.Email})
	return nil
}
