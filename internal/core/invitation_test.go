package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/sitehelper/internal/email"
	"github.com/edvin/sitehelper/internal/model"
	"github.com/edvin/sitehelper/internal/rbac"
)

const (
	testAccountID = "acct-1"
	testActorID   = "user-actor"
)

func newInvitationService(db *mockDB, sender *mockSender) *InvitationService {
	audit := testAudit()
	team := NewTeamService(db, audit)
	return NewInvitationService(db, team, audit, sender, "https://app.example.com", zerolog.Nop())
}

// memberRow stubs the active-membership lookup with the given role.
func memberRow(userID string, role rbac.Role) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "member-" + userID
		*(dest[1].(*string)) = testAccountID
		*(dest[2].(*string)) = userID
		*(dest[3].(*rbac.Role)) = role
		*(dest[4].(*model.MemberStatus)) = model.MemberActive
		*(dest[6].(*time.Time)) = time.Now()
		return nil
	}}
}

func stubActiveMember(db *mockDB, userID string, role rbac.Role) {
	db.On("QueryRow", mock.Anything, sqlContains("FROM team_members"), mock.Anything).
		Return(memberRow(userID, role)).Once()
}

func stubAccountName(db *mockDB, name string) {
	db.On("QueryRow", mock.Anything, sqlContains("FROM business_accounts"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = name
			return nil
		}})
}

// ---------- Issue ----------

func TestInvitationService_Issue_Success(t *testing.T) {
	db := &mockDB{}
	sender := &mockSender{}
	svc := newInvitationService(db, sender)
	ctx := context.Background()

	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	db.On("QueryRow", mock.Anything, sqlContains("FROM invitations"), mock.Anything).Return(noRows())
	db.On("Exec", mock.Anything, sqlContains("INSERT INTO invitations"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)
	stubAccountName(db, "Acme Corp")
	sender.On("SendInvitation", mock.Anything, mock.MatchedBy(func(p email.InvitationParams) bool {
		return p.To == "new@example.com" && p.Role == "editor" && p.BusinessName == "Acme Corp"
	})).Return(nil)

	inv, err := svc.Issue(ctx, testAccountID, testActorID, "new@example.com", rbac.RoleEditor)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, model.InvitationPending, inv.Status)
	assert.Equal(t, rbac.RoleEditor, inv.Role)
	assert.NotEmpty(t, inv.Token)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), inv.ExpiresAt, time.Minute)
	db.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestInvitationService_Issue_NonMember(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	db.On("QueryRow", mock.Anything, sqlContains("FROM team_members"), mock.Anything).Return(noRows())

	_, err := svc.Issue(context.Background(), testAccountID, testActorID, "new@example.com", rbac.RoleEditor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestInvitationService_Issue_EditorForbidden(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	stubActiveMember(db, testActorID, rbac.RoleEditor)

	_, err := svc.Issue(context.Background(), testAccountID, testActorID, "new@example.com", rbac.RoleEditor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestInvitationService_Issue_OwnerRoleRejected(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	stubActiveMember(db, testActorID, rbac.RoleOwner)

	_, err := svc.Issue(context.Background(), testAccountID, testActorID, "new@example.com", rbac.RoleOwner)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "role")
}

func TestInvitationService_Issue_BadEmail(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	stubActiveMember(db, testActorID, rbac.RoleOwner)

	_, err := svc.Issue(context.Background(), testAccountID, testActorID, "not-an-email", rbac.RoleEditor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "email")
}

func TestInvitationService_Issue_DuplicatePending(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	db.On("QueryRow", mock.Anything, sqlContains("FROM invitations"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = "inv-existing"
			return nil
		}})

	_, err := svc.Issue(context.Background(), testAccountID, testActorID, "new@example.com", rbac.RoleEditor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInvitationService_Issue_DuplicateRace(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	db.On("QueryRow", mock.Anything, sqlContains("FROM invitations"), mock.Anything).Return(noRows())
	db.On("Exec", mock.Anything, sqlContains("INSERT INTO invitations"), mock.Anything).
		Return(pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"})

	_, err := svc.Issue(context.Background(), testAccountID, testActorID, "new@example.com", rbac.RoleEditor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInvitationService_Issue_DeliveryRejected_CompensatingDelete(t *testing.T) {
	db := &mockDB{}
	sender := &mockSender{}
	svc := newInvitationService(db, sender)

	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	db.On("QueryRow", mock.Anything, sqlContains("FROM invitations"), mock.Anything).Return(noRows())
	db.On("Exec", mock.Anything, sqlContains("INSERT INTO invitations"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)
	stubAccountName(db, "Acme Corp")
	sender.On("SendInvitation", mock.Anything, mock.Anything).
		Return(&email.APIError{StatusCode: 422, Body: "invalid recipient"})
	db.On("Exec", mock.Anything, sqlContains("DELETE FROM invitations"), mock.Anything).
		Return(pgconn.CommandTag{}, nil).Once()

	_, err := svc.Issue(context.Background(), testAccountID, testActorID, "new@example.com", rbac.RoleEditor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	db.AssertExpectations(t)
}

func TestInvitationService_Issue_AmbiguousDelivery_KeepsInvitation(t *testing.T) {
	db := &mockDB{}
	sender := &mockSender{}
	svc := newInvitationService(db, sender)

	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	db.On("QueryRow", mock.Anything, sqlContains("FROM invitations"), mock.Anything).Return(noRows())
	db.On("Exec", mock.Anything, sqlContains("INSERT INTO invitations"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)
	stubAccountName(db, "Acme Corp")
	sender.On("SendInvitation", mock.Anything, mock.Anything).
		Return(errors.New("dial tcp: connection refused"))

	_, err := svc.Issue(context.Background(), testAccountID, testActorID, "new@example.com", rbac.RoleEditor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	// No DELETE was expected or stubbed: the row stays for a later resend.
	db.AssertExpectations(t)
}

// ---------- Accept ----------

func pendingInvitationRow(token string, expiresAt time.Time) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "inv-1"
		*(dest[1].(*string)) = testAccountID
		*(dest[2].(*string)) = "new@example.com"
		*(dest[3].(*rbac.Role)) = rbac.RoleEditor
		*(dest[4].(*string)) = testActorID
		*(dest[5].(*string)) = token
		*(dest[6].(*time.Time)) = expiresAt
		*(dest[7].(*model.InvitationStatus)) = model.InvitationPending
		*(dest[9].(*time.Time)) = time.Now().Add(-time.Hour)
		return nil
	}}
}

func TestInvitationService_Accept_Success(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})
	ctx := context.Background()

	db.On("QueryRow", mock.Anything, sqlContains("WHERE token"), mock.Anything).
		Return(pendingInvitationRow("tok", time.Now().Add(24*time.Hour)))
	db.On("QueryRow", mock.Anything, sqlContains("FROM team_members"), mock.Anything).Return(noRows())

	tx := &mockTx{}
	tx.On("Exec", mock.Anything, sqlContains("INSERT INTO team_members"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)
	tx.On("Exec", mock.Anything, sqlContains("UPDATE invitations"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)
	tx.On("Commit", mock.Anything).Return(nil)
	tx.On("Rollback", mock.Anything).Return(nil)
	db.On("Begin", mock.Anything).Return(tx, nil)

	db.On("QueryRow", mock.Anything, sqlContains("FROM business_accounts"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = testAccountID
			*(dest[1].(*string)) = "Acme Corp"
			return nil
		}})

	result, err := svc.Accept(ctx, "tok", "user-new")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "user-new", result.Member.UserID)
	assert.Equal(t, rbac.RoleEditor, result.Member.Role)
	assert.Equal(t, model.MemberActive, result.Member.Status)
	require.NotNil(t, result.Member.JoinedAt)
	assert.Equal(t, "Acme Corp", result.Account.Name)
	tx.AssertExpectations(t)
	db.AssertExpectations(t)
}

func TestInvitationService_Accept_UnknownToken(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	db.On("QueryRow", mock.Anything, sqlContains("WHERE token"), mock.Anything).Return(noRows())

	_, err := svc.Accept(context.Background(), "bogus", "user-new")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvitationService_Accept_Expired(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	expiredAt := time.Now().Add(-time.Hour)
	db.On("QueryRow", mock.Anything, sqlContains("WHERE token"), mock.Anything).
		Return(pendingInvitationRow("tok", expiredAt))
	db.On("Exec", mock.Anything, sqlContains("SET status = 'expired'"), mock.Anything).
		Return(pgconn.CommandTag{}, nil).Once()

	_, err := svc.Accept(context.Background(), "tok", "user-new")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpired)

	var expErr *ExpiredError
	require.ErrorAs(t, err, &expErr)
	assert.WithinDuration(t, expiredAt, expErr.ExpiredAt, time.Second)
	db.AssertExpectations(t)
}

func TestInvitationService_Accept_AlreadyMember(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	db.On("QueryRow", mock.Anything, sqlContains("WHERE token"), mock.Anything).
		Return(pendingInvitationRow("tok", time.Now().Add(24*time.Hour)))
	db.On("QueryRow", mock.Anything, sqlContains("FROM team_members"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*string)) = "member-existing"
			return nil
		}})

	_, err := svc.Accept(context.Background(), "tok", "user-new")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestInvitationService_Accept_RaceLosesToConcurrentAccept(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	db.On("QueryRow", mock.Anything, sqlContains("WHERE token"), mock.Anything).
		Return(pendingInvitationRow("tok", time.Now().Add(24*time.Hour)))
	db.On("QueryRow", mock.Anything, sqlContains("FROM team_members"), mock.Anything).Return(noRows())

	tx := &mockTx{}
	tx.On("Exec", mock.Anything, sqlContains("INSERT INTO team_members"), mock.Anything).
		Return(pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"})
	tx.On("Rollback", mock.Anything).Return(nil)
	db.On("Begin", mock.Anything).Return(tx, nil)

	_, err := svc.Accept(context.Background(), "tok", "user-new")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	tx.AssertExpectations(t)
}

// ---------- Revoke / Resend ----------

func invitationByIDRow(status model.InvitationStatus, expiresAt time.Time) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "inv-1"
		*(dest[1].(*string)) = testAccountID
		*(dest[2].(*string)) = "new@example.com"
		*(dest[3].(*rbac.Role)) = rbac.RoleEditor
		*(dest[4].(*string)) = testActorID
		*(dest[5].(*string)) = "tok"
		*(dest[6].(*time.Time)) = expiresAt
		*(dest[7].(*model.InvitationStatus)) = status
		*(dest[9].(*time.Time)) = time.Now().Add(-time.Hour)
		return nil
	}}
}

func TestInvitationService_Revoke_Success(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	db.On("QueryRow", mock.Anything, sqlContains("FROM invitations WHERE id"), mock.Anything).
		Return(invitationByIDRow(model.InvitationPending, time.Now().Add(24*time.Hour)))
	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	db.On("Exec", mock.Anything, sqlContains("SET status = 'revoked'"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	inv, err := svc.Revoke(context.Background(), "inv-1", testActorID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationRevoked, inv.Status)
}

func TestInvitationService_Revoke_NotPending(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	db.On("QueryRow", mock.Anything, sqlContains("FROM invitations WHERE id"), mock.Anything).
		Return(invitationByIDRow(model.InvitationAccepted, time.Now().Add(24*time.Hour)))
	stubActiveMember(db, testActorID, rbac.RoleAdmin)

	_, err := svc.Revoke(context.Background(), "inv-1", testActorID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvitationService_Resend_Success(t *testing.T) {
	db := &mockDB{}
	sender := &mockSender{}
	svc := newInvitationService(db, sender)

	db.On("QueryRow", mock.Anything, sqlContains("FROM invitations WHERE id"), mock.Anything).
		Return(invitationByIDRow(model.InvitationPending, time.Now().Add(24*time.Hour)))
	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	stubAccountName(db, "Acme Corp")
	sender.On("SendInvitation", mock.Anything, mock.Anything).Return(nil)

	err := svc.Resend(context.Background(), "inv-1", testActorID)
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestInvitationService_Resend_Expired(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	db.On("QueryRow", mock.Anything, sqlContains("FROM invitations WHERE id"), mock.Anything).
		Return(invitationByIDRow(model.InvitationPending, time.Now().Add(-time.Hour)))
	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	db.On("Exec", mock.Anything, sqlContains("SET status = 'expired'"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)

	err := svc.Resend(context.Background(), "inv-1", testActorID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpired)
}

// ---------- ListByAccount ----------

func TestInvitationService_ListByAccount_RequiresViewTeam(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	db.On("QueryRow", mock.Anything, sqlContains("FROM team_members"), mock.Anything).Return(noRows())

	_, err := svc.ListByAccount(context.Background(), testAccountID, "outsider")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestInvitationService_ListByAccount_Success(t *testing.T) {
	db := &mockDB{}
	svc := newInvitationService(db, &mockSender{})

	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	rows := newMockRows(func(dest ...any) error {
		*(dest[0].(*string)) = "inv-1"
		*(dest[1].(*string)) = testAccountID
		*(dest[2].(*string)) = "new@example.com"
		*(dest[3].(*rbac.Role)) = rbac.RoleEditor
		*(dest[4].(*string)) = testActorID
		*(dest[5].(*string)) = "tok"
		*(dest[6].(*time.Time)) = time.Now().Add(24 * time.Hour)
		*(dest[7].(*model.InvitationStatus)) = model.InvitationPending
		*(dest[9].(*time.Time)) = time.Now()
		return nil
	})
	db.On("Query", mock.Anything, sqlContains("FROM invitations"), mock.Anything).
		Return(pgx.Rows(rows), nil)

	invitations, err := svc.ListByAccount(context.Background(), testAccountID, testActorID)
	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.Equal(t, "new@example.com", invitations[0].Email)
}
