package core

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/sitehelper/internal/model"
	"github.com/edvin/sitehelper/internal/rbac"
)

func newTeamService(db *mockDB) *TeamService {
	return NewTeamService(db, testAudit())
}

// targetRow stubs the by-id member lookup.
func targetRow(memberID, userID string, role rbac.Role, status model.MemberStatus) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = memberID
		*(dest[1].(*string)) = testAccountID
		*(dest[2].(*string)) = userID
		*(dest[3].(*rbac.Role)) = role
		*(dest[4].(*model.MemberStatus)) = status
		*(dest[6].(*time.Time)) = time.Now()
		return nil
	}}
}

func stubTarget(db *mockDB, memberID, userID string, role rbac.Role) {
	db.On("QueryRow", mock.Anything, sqlContains("WHERE id = $1 AND business_account_id"), mock.Anything).
		Return(targetRow(memberID, userID, role, model.MemberActive)).Once()
}

// ---------- RequirePermission ----------

func TestTeamService_RequirePermission_FreshRoleWins(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	// The stored role is editor regardless of whatever the caller believes.
	stubActiveMember(db, testActorID, rbac.RoleEditor)

	_, err := svc.RequirePermission(context.Background(), testAccountID, testActorID, rbac.PermManageTeam)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestTeamService_RequirePermission_NonMemberIsForbidden(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	db.On("QueryRow", mock.Anything, sqlContains("FROM team_members"), mock.Anything).Return(noRows())

	_, err := svc.RequirePermission(context.Background(), testAccountID, "outsider", rbac.PermViewWebsites)
	require.Error(t, err)
	// Forbidden, never NotFound: non-members must not learn the account exists.
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestTeamService_RequirePermission_Granted(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	stubActiveMember(db, testActorID, rbac.RoleEditor)

	m, err := svc.RequirePermission(context.Background(), testAccountID, testActorID, rbac.PermViewKnowledgeBases)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleEditor, m.Role)
}

// ---------- ChangeRole ----------

func TestTeamService_ChangeRole_Success(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	stubActiveMember(db, testActorID, rbac.RoleOwner)
	stubTarget(db, "member-2", "user-2", rbac.RoleEditor)
	db.On("Exec", mock.Anything, sqlContains("SET role"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)

	m, err := svc.ChangeRole(context.Background(), testAccountID, testActorID, "member-2", rbac.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, m.Role)
	db.AssertExpectations(t)
}

func TestTeamService_ChangeRole_ToOwnerRejected(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	_, err := svc.ChangeRole(context.Background(), testAccountID, testActorID, "member-2", rbac.RoleOwner)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTeamService_ChangeRole_OwnerRowUntouchable(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	stubTarget(db, "member-owner", "user-owner", rbac.RoleOwner)

	_, err := svc.ChangeRole(context.Background(), testAccountID, testActorID, "member-owner", rbac.RoleEditor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "owner")
}

func TestTeamService_ChangeRole_SelfRejected(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	stubTarget(db, "member-actor", testActorID, rbac.RoleAdmin)

	_, err := svc.ChangeRole(context.Background(), testAccountID, testActorID, "member-actor", rbac.RoleEditor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "your own membership")
}

func TestTeamService_ChangeRole_AdminCanDemoteAdmin(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	stubTarget(db, "member-2", "user-2", rbac.RoleAdmin)
	db.On("Exec", mock.Anything, sqlContains("SET role"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)

	m, err := svc.ChangeRole(context.Background(), testAccountID, testActorID, "member-2", rbac.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleEditor, m.Role)
}

// ---------- Remove ----------

func TestTeamService_Remove_Success(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	stubTarget(db, "member-2", "user-2", rbac.RoleEditor)
	db.On("Exec", mock.Anything, sqlContains("DELETE FROM team_members"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)

	err := svc.Remove(context.Background(), testAccountID, testActorID, "member-2")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestTeamService_Remove_TargetNotFound(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	db.On("QueryRow", mock.Anything, sqlContains("WHERE id = $1 AND business_account_id"), mock.Anything).
		Return(noRows())

	err := svc.Remove(context.Background(), testAccountID, testActorID, "member-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

// ---------- Suspend / Reactivate ----------

func TestTeamService_Suspend_Success(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	stubActiveMember(db, testActorID, rbac.RoleOwner)
	stubTarget(db, "member-2", "user-2", rbac.RoleEditor)
	db.On("Exec", mock.Anything, sqlContains("SET status"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)

	m, err := svc.Suspend(context.Background(), testAccountID, testActorID, "member-2")
	require.NoError(t, err)
	assert.Equal(t, model.MemberSuspended, m.Status)
}

func TestTeamService_Reactivate_ConflictWithOtherActiveRow(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	stubActiveMember(db, testActorID, rbac.RoleOwner)
	db.On("QueryRow", mock.Anything, sqlContains("WHERE id = $1 AND business_account_id"), mock.Anything).
		Return(targetRow("member-2", "user-2", rbac.RoleEditor, model.MemberSuspended)).Once()
	db.On("Exec", mock.Anything, sqlContains("SET status"), mock.Anything).
		Return(pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"})

	_, err := svc.Reactivate(context.Background(), testAccountID, testActorID, "member-2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
}

// ---------- List ----------

func TestTeamService_List_Success(t *testing.T) {
	db := &mockDB{}
	svc := newTeamService(db)

	stubActiveMember(db, testActorID, rbac.RoleAdmin)
	rows := newMockRows(
		func(dest ...any) error {
			*(dest[0].(*string)) = "member-1"
			*(dest[1].(*string)) = testAccountID
			*(dest[2].(*string)) = "user-owner"
			*(dest[3].(*rbac.Role)) = rbac.RoleOwner
			*(dest[4].(*model.MemberStatus)) = model.MemberActive
			*(dest[6].(*time.Time)) = time.Now()
			return nil
		},
		func(dest ...any) error {
			*(dest[0].(*string)) = "member-2"
			*(dest[1].(*string)) = testAccountID
			*(dest[2].(*string)) = "user-2"
			*(dest[3].(*rbac.Role)) = rbac.RoleEditor
			*(dest[4].(*model.MemberStatus)) = model.MemberActive
			*(dest[6].(*time.Time)) = time.Now()
			return nil
		},
	)
	db.On("Query", mock.Anything, sqlContains("FROM team_members"), mock.Anything).
		Return(pgx.Rows(rows), nil)

	members, err := svc.List(context.Background(), testAccountID, testActorID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, rbac.RoleOwner, members[0].Role)
	assert.Equal(t, rbac.RoleEditor, members[1].Role)
}
