package onboarding

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/handler/httperr"
	"github.com/adultally/ally/backend/internal/middleware"
	"github.com/adultally/ally/backend/internal/service/onboarding"
	"github.com/adultally/ally/backend/pkg/utils"
)

// Handler exposes the onboarding flow of the signed-in user.
type Handler struct {
	logger *zap.Logger
}

// New creates the onboarding handler.
func New(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// RegisterRoutes registers the onboarding routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/onboarding", func(r chi.Router) {
		r.Get("/", h.handleState)
		r.Post("/age", h.handleAge)
		r.Post("/language", h.handleLanguage)
		r.Post("/persona", h.handlePersona)
		r.Post("/choose-persona", h.handleChoosePersona)
		r.Post("/reset", h.handleReset)
	})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	ws, _ := middleware.WorkspaceFrom(r.Context())
	snap, err := ws.Onboarding.Start(r.Context())
	h.respond(w, snap, err)
}

func (h *Handler) handleAge(w http.ResponseWriter, r *http.Request) {
	var form onboarding.AgeForm
	if err := utils.DecodeJSON(w, r, &form); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws, _ := middleware.WorkspaceFrom(r.Context())
	snap, err := ws.Onboarding.SubmitAge(r.Context(), form)
	h.respond(w, snap, err)
}

func (h *Handler) handleLanguage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Language string `json:"language"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws, _ := middleware.WorkspaceFrom(r.Context())
	snap, err := ws.Onboarding.SelectLanguage(r.Context(), payload.Language)
	h.respond(w, snap, err)
}

func (h *Handler) handlePersona(w http.ResponseWriter, r *http.Request) {
	var form onboarding.PersonaForm
	if err := utils.DecodeJSON(w, r, &form); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws, _ := middleware.WorkspaceFrom(r.Context())
	snap, err := ws.Onboarding.CompletePersona(r.Context(), form)
	h.respond(w, snap, err)
}

func (h *Handler) handleChoosePersona(w http.ResponseWriter, r *http.Request) {
	ws, _ := middleware.WorkspaceFrom(r.Context())
	snap, err := ws.Onboarding.ChoosePersona(r.Context())
	h.respond(w, snap, err)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ws, _ := middleware.WorkspaceFrom(r.Context())
	snap, err := ws.Onboarding.Reset(r.Context())
	h.respond(w, snap, err)
}

func (h *Handler) respond(w http.ResponseWriter, snap onboarding.Snapshot, err error) {
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

// RequireReady rejects requests until the user finished onboarding.
func RequireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, ok := middleware.WorkspaceFrom(r.Context())
		if !ok || !ready(r.Context(), ws.Onboarding) {
			utils.RespondError(w, http.StatusConflict, "onboarding is not complete")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ready(ctx context.Context, m *onboarding.Machine) bool {
	snap, err := m.Start(ctx)
	return err == nil && snap.State == onboarding.StateReady
}
