package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newInvitationHandler() *Invitation {
	// nil service: these tests exercise the paths that fail before any
	// service call.
	return NewInvitation(nil)
}

// --- Send ---

func TestInvitationSend_MissingClaims(t *testing.T) {
	h := newInvitationHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/invitations", map[string]any{
		"email": "a@example.com", "role": "editor", "businessAccountId": "acct-1",
	})

	h.Send(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvitationSend_InvalidJSON(t *testing.T) {
	h := newInvitationHandler()
	rec := httptest.NewRecorder()
	r := asUser(newRequestRaw(http.MethodPost, "/invitations", "{bad json"), "user-1")

	h.Send(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestInvitationSend_MissingFields(t *testing.T) {
	h := newInvitationHandler()
	rec := httptest.NewRecorder()
	r := asUser(newRequest(http.MethodPost, "/invitations", map[string]any{}), "user-1")

	h.Send(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestInvitationSend_OwnerRoleRejectedByValidation(t *testing.T) {
	h := newInvitationHandler()
	rec := httptest.NewRecorder()
	r := asUser(newRequest(http.MethodPost, "/invitations", map[string]any{
		"email": "a@example.com", "role": "owner", "businessAccountId": "acct-1",
	}), "user-1")

	h.Send(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Accept ---

func TestInvitationAccept_MissingClaims(t *testing.T) {
	h := newInvitationHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/invitations/accept", map[string]any{
		"token": "tok", "userId": "user-1",
	})

	h.Accept(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvitationAccept_UserIDMismatch(t *testing.T) {
	h := newInvitationHandler()
	rec := httptest.NewRecorder()
	r := asUser(newRequest(http.MethodPost, "/invitations/accept", map[string]any{
		"token": "tok", "userId": "someone-else",
	}), "user-1")

	h.Accept(rec, r)

	// The body's user id is an untrusted hint; only the bearer identity counts.
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "does not match")
}

func TestInvitationAccept_MissingToken(t *testing.T) {
	h := newInvitationHandler()
	rec := httptest.NewRecorder()
	r := asUser(newRequest(http.MethodPost, "/invitations/accept", map[string]any{
		"userId": "user-1",
	}), "user-1")

	h.Accept(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
