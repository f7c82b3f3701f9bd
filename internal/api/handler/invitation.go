package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/sitehelper/internal/api/request"
	"github.com/edvin/sitehelper/internal/api/response"
	"github.com/edvin/sitehelper/internal/core"
	"github.com/edvin/sitehelper/internal/rbac"
)

type Invitation struct {
	svc *core.InvitationService
}

func NewInvitation(svc *core.InvitationService) *Invitation {
	return &Invitation{svc: svc}
}

// Send issues an invitation and emails the acceptance link.
// The duplicate-pending case is a 400 on this endpoint, not a 409: the
// dashboard treats it as a form validation error.
func (h *Invitation) Send(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req request.SendInvitation
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := h.svc.Issue(r.Context(), req.BusinessAccountID, claims.Sub, req.Email, rbac.Role(req.Role))
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeCoreError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"invitation": map[string]any{
			"id":         inv.ID,
			"email":      inv.Email,
			"role":       inv.Role,
			"expires_at": inv.ExpiresAt,
		},
	})
}

// Accept redeems an invitation token for the authenticated user. The body's
// userId must match the bearer identity; it is never trusted on its own.
func (h *Invitation) Accept(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req request.AcceptInvitation
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.UserID != claims.Sub {
		response.WriteError(w, http.StatusForbidden, "user id does not match the authenticated session")
		return
	}

	result, err := h.svc.Accept(r.Context(), req.Token, claims.Sub)
	if err != nil {
		var expErr *core.ExpiredError
		if errors.As(err, &expErr) {
			response.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"error":      "invitation has expired",
				"expired_at": expErr.ExpiredAt,
			})
			return
		}
		writeCoreError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"teamMember": map[string]any{
			"id":                  result.Member.ID,
			"role":                result.Member.Role,
			"business_account_id": result.Member.BusinessAccountID,
			"joined_at":           result.Member.JoinedAt,
		},
		"businessAccount": map[string]any{
			"id":   result.Account.ID,
			"name": result.Account.Name,
		},
	})
}

// Revoke cancels a pending invitation.
func (h *Invitation) Revoke(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	inv, err := h.svc.Revoke(r.Context(), chi.URLParam(r, "id"), claims.Sub)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "invitation": inv})
}

// Resend re-delivers a pending invitation's email.
func (h *Invitation) Resend(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.svc.Resend(r.Context(), chi.URLParam(r, "id"), claims.Sub); err != nil {
		var expErr *core.ExpiredError
		if errors.As(err, &expErr) {
			response.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"error":      "invitation has expired",
				"expired_at": expErr.ExpiredAt,
			})
			return
		}
		writeCoreError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ListByAccount returns an account's invitations.
func (h *Invitation) ListByAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	invitations, err := h.svc.ListByAccount(r.Context(), chi.URLParam(r, "id"), claims.Sub)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"items": invitations})
}
