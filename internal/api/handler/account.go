package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/sitehelper/internal/api/request"
	"github.com/edvin/sitehelper/internal/api/response"
	"github.com/edvin/sitehelper/internal/core"
	"github.com/edvin/sitehelper/internal/rbac"
)

type Account struct {
	svc   *core.BusinessAccountService
	team  *core.TeamService
	audit *core.AuditService
}

func NewAccount(svc *core.BusinessAccountService, team *core.TeamService, audit *core.AuditService) *Account {
	return &Account{svc: svc, team: team, audit: audit}
}

func (h *Account) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	acc, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), claims.Sub)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, acc)
}

func (h *Account) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req request.UpdateAccount
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	acc, err := h.svc.UpdateName(r.Context(), chi.URLParam(r, "id"), claims.Sub, req.Name)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, acc)
}

func (h *Account) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), claims.Sub); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers returns the account's team.
func (h *Account) ListMembers(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	members, err := h.team.List(r.Context(), chi.URLParam(r, "id"), claims.Sub)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"items": members})
}

// ChangeMemberRole sets a member's role to admin or editor.
func (h *Account) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req request.ChangeMemberRole
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	member, err := h.team.ChangeRole(r.Context(),
		chi.URLParam(r, "id"), claims.Sub, chi.URLParam(r, "memberID"), rbac.Role(req.Role))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, member)
}

// RemoveMember deletes a member from the account.
func (h *Account) RemoveMember(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	err := h.team.Remove(r.Context(), chi.URLParam(r, "id"), claims.Sub, chi.URLParam(r, "memberID"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SuspendMember marks a member suspended.
func (h *Account) SuspendMember(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	member, err := h.team.Suspend(r.Context(), chi.URLParam(r, "id"), claims.Sub, chi.URLParam(r, "memberID"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, member)
}

// ReactivateMember restores a suspended member.
func (h *Account) ReactivateMember(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	member, err := h.team.Reactivate(r.Context(), chi.URLParam(r, "id"), claims.Sub, chi.URLParam(r, "memberID"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, member)
}

// ListAuditLogs returns the account's audit trail.
func (h *Account) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.audit.List(r.Context(), h.team, chi.URLParam(r, "id"), claims.Sub, limit)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"items": logs})
}
