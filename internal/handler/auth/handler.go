package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/middleware"
	"github.com/adultally/ally/backend/internal/service/identity"
	"github.com/adultally/ally/backend/internal/service/workspace"
	"github.com/adultally/ally/backend/pkg/utils"
)

// Handler signs users in and out.
type Handler struct {
	resolver      identity.Resolver
	workspaces    *workspace.Manager
	secureCookies bool
	logger        *zap.Logger
}

// New creates the auth handler.
func New(resolver identity.Resolver, workspaces *workspace.Manager, secureCookies bool, logger *zap.Logger) *Handler {
	return &Handler{resolver: resolver, workspaces: workspaces, secureCookies: secureCookies, logger: logger}
}

// RegisterRoutes registers the sign-in routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/google", h.handleGoogle)
	r.Post("/auth/logout", h.handleLogout)
}

func (h *Handler) handleGoogle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token string `json:"token"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.resolver.Resolve(r.Context(), payload.Token)
	if err != nil {
		h.logger.Info("sign-in refused", zap.Error(err))
		middleware.ClearUserCookie(w, h.secureCookies)
		utils.RespondError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}

	ws, err := h.workspaces.Get(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("failed to open workspace", zap.String("user", id.UserID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to open workspace")
		return
	}
	if id.Language != "" {
		ws.Onboarding.SetLanguageHint(id.Language)
	}

	middleware.SetUserCookie(w, id.UserID, h.secureCookies)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"userId":     id.UserID,
		"email":      id.Email,
		"name":       id.Name,
		"onboarding": ws.Onboarding.Snapshot(),
	})
}

// handleLogout forgets everything stored for the user on this device.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.UserCookie); err == nil && cookie.Value != "" {
		ws, err := h.workspaces.Get(r.Context(), cookie.Value)
		if err == nil {
			_, err = ws.Onboarding.Reset(r.Context())
		}
		if err != nil {
			h.logger.Error("failed to clear user data on logout", zap.String("user", cookie.Value), zap.Error(err))
			utils.RespondError(w, http.StatusInternalServerError, "failed to clear user data")
			return
		}
	}

	middleware.ClearUserCookie(w, h.secureCookies)
	w.WriteHeader(http.StatusNoContent)
}
