// Package httperr maps service errors to HTTP responses.
package httperr

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/model/persona"
	chatservice "github.com/adultally/ally/backend/internal/service/chat"
	"github.com/adultally/ally/backend/internal/service/identity"
	"github.com/adultally/ally/backend/internal/service/onboarding"
	"github.com/adultally/ally/backend/internal/service/profile"
	"github.com/adultally/ally/backend/internal/service/session"
	"github.com/adultally/ally/backend/pkg/utils"
)

// Status returns the HTTP status for err.
func Status(err error) int {
	var verr *onboarding.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, profile.ErrNameRequired),
		errors.Is(err, profile.ErrGenderRequired),
		errors.Is(err, profile.ErrInvalidColor),
		errors.Is(err, chatservice.ErrEmptyContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, persona.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, onboarding.ErrInvalidTransition),
		errors.Is(err, session.ErrSendInFlight),
		errors.Is(err, session.ErrClearInFlight),
		errors.Is(err, session.ErrSendDiscarded),
		errors.Is(err, session.ErrNoActivePersona):
		return http.StatusConflict
	case errors.Is(err, identity.ErrSessionNotEstablished):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrCompletionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Write responds with the status and message for err. Server errors are
// logged and their details withheld.
func Write(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := Status(err)

	var verr *onboarding.ValidationError
	if errors.As(err, &verr) {
		utils.RespondJSON(w, status, map[string]string{"error": verr.Error(), "field": verr.Field})
		return
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		utils.RespondError(w, status, "internal error")
		return
	}
	utils.RespondError(w, status, err.Error())
}
