package model

import (
	"time"

	"github.com/edvin/sitehelper/internal/rbac"
)

// InvitationStatus is the lifecycle status of an invitation.
// pending is the only non-terminal state; accepted, expired, and revoked
// are final.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
	InvitationRevoked  InvitationStatus = "revoked"
)

func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationExpired, InvitationRevoked:
		return true
	}
	return false
}

// Invitation is a time-boxed, single-use offer of membership at a specific
// role, addressed to an email. At most one pending invitation exists per
// (business_account_id, email); the token is the only way to discover it.
type Invitation struct {
	ID                string           `json:"id" db:"id"`
	BusinessAccountID string           `json:"business_account_id" db:"business_account_id"`
	Email             string           `json:"email" db:"email"`
	Role              rbac.Role        `json:"role" db:"role"`
	InvitedBy         string           `json:"invited_by" db:"invited_by"`
	Token             string           `json:"-" db:"token"`
	ExpiresAt         time.Time        `json:"expires_at" db:"expires_at"`
	Status            InvitationStatus `json:"status" db:"status"`
	AcceptedAt        *time.Time       `json:"accepted_at,omitempty" db:"accepted_at"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
}

// Expired reports whether the invitation's deadline has passed at the given time.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
