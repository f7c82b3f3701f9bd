package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/edvin/sitehelper/internal/api/middleware"
	"github.com/edvin/sitehelper/internal/api/response"
	"github.com/edvin/sitehelper/internal/core"
	"github.com/edvin/sitehelper/internal/model"
)

// requireClaims extracts JWT claims or writes a 401.
func requireClaims(w http.ResponseWriter, r *http.Request) (*model.JWTClaims, bool) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return nil, false
	}
	return claims, true
}

// writeCoreError maps the service error taxonomy onto HTTP statuses.
// Unknown errors are logged and surfaced as a generic 500: driver and
// upstream details never reach the caller.
func writeCoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		response.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrUnauthorized):
		response.WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, core.ErrForbidden):
		response.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, core.ErrNotFound):
		response.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrConflict):
		response.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrExpired), errors.Is(err, core.ErrAlreadyMember):
		response.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrDeliveryFailed):
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unhandled service error")
		response.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
