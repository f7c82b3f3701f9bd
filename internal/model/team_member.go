package model

import (
	"time"

	"github.com/edvin/sitehelper/internal/rbac"
)

// MemberStatus is the lifecycle status of a team membership.
type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberInvited   MemberStatus = "invited"
	MemberSuspended MemberStatus = "suspended"
)

func (s MemberStatus) Valid() bool {
	switch s {
	case MemberActive, MemberInvited, MemberSuspended:
		return true
	}
	return false
}

// TeamMember binds a user to a role within one business account.
// At most one active row exists per (business_account_id, user_id);
// the storage layer enforces this with a partial unique index.
type TeamMember struct {
	ID                string       `json:"id" db:"id"`
	BusinessAccountID string       `json:"business_account_id" db:"business_account_id"`
	UserID            string       `json:"user_id" db:"user_id"`
	Role              rbac.Role    `json:"role" db:"role"`
	Status            MemberStatus `json:"status" db:"status"`
	InvitedBy         *string      `json:"invited_by,omitempty" db:"invited_by"`
	InvitedAt         time.Time    `json:"invited_at" db:"invited_at"`
	JoinedAt          *time.Time   `json:"joined_at,omitempty" db:"joined_at"`
}
