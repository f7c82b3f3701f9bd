package handler

import (
	"net/http"

	"github.com/edvin/sitehelper/internal/api/request"
	"github.com/edvin/sitehelper/internal/api/response"
	"github.com/edvin/sitehelper/internal/core"
	"github.com/edvin/sitehelper/internal/model"
)

type Auth struct {
	svc      *core.AuthService
	accounts *core.BusinessAccountService
}

func NewAuth(svc *core.AuthService, accounts *core.BusinessAccountService) *Auth {
	return &Auth{svc: svc, accounts: accounts}
}

type sessionResponse struct {
	Token   string                 `json:"token"`
	User    *model.User            `json:"user"`
	Account *model.BusinessAccount `json:"business_account,omitempty"`
}

// Signup registers a user together with their business account and returns
// a session token. The caller becomes the account's owner.
func (h *Auth) Signup(w http.ResponseWriter, r *http.Request) {
	var req request.Signup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Signup(r.Context(), req.Email, req.Password, req.DisplayName, req.BusinessName)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, sessionResponse{
		Token:   result.Token,
		User:    result.User,
		Account: result.Account,
	})
}

// Login authenticates with email and password and returns a session token.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req request.Login
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

// Me returns the authenticated user and the accounts they belong to.
func (h *Auth) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	user, err := h.svc.GetUser(r.Context(), claims.Sub)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}

	accounts, err := h.accounts.ListForUser(r.Context(), claims.Sub)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []model.BusinessAccount{}
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"user":              user,
		"business_accounts": accounts,
	})
}
