package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/handler/httperr"
	"github.com/adultally/ally/backend/internal/middleware"
	"github.com/adultally/ally/backend/internal/service/session"
	"github.com/adultally/ally/backend/pkg/utils"
)

// Handler exposes the session controller of the signed-in user.
type Handler struct {
	logger *zap.Logger
}

// New creates the session handler.
func New(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// RegisterRoutes registers the chat session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.handleSnapshot)
	r.Put("/session/persona", h.handleSwitchPersona)
	r.Post("/session/messages", h.handleSendMessage)
	r.Delete("/session/messages", h.handleClear)
	r.Post("/session/error/dismiss", h.handleDismissError)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ws, _ := middleware.WorkspaceFrom(r.Context())
	utils.RespondJSON(w, http.StatusOK, ws.Session.Snapshot())
}

func (h *Handler) handleSwitchPersona(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.PersonaID == "" {
		utils.RespondError(w, http.StatusBadRequest, "personaId is required")
		return
	}

	ws, _ := middleware.WorkspaceFrom(r.Context())
	if err := ws.Session.Activate(r.Context(), payload.PersonaID); err != nil {
		httperr.Write(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ws.Session.Snapshot())
}

// handleSendMessage blocks until the reply arrived or the send failed. A
// failed completion answers 502 with the session, which carries the logged
// error notice.
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, _ := middleware.WorkspaceFrom(r.Context())
	err := ws.Session.SendMessage(r.Context(), payload.Text)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, ws.Session.Snapshot())
	case errors.Is(err, session.ErrCompletionFailed):
		utils.RespondJSON(w, http.StatusBadGateway, map[string]any{
			"error":   err.Error(),
			"session": ws.Session.Snapshot(),
		})
	default:
		httperr.Write(w, h.logger, err)
	}
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	ws, _ := middleware.WorkspaceFrom(r.Context())
	if err := ws.Session.Clear(r.Context(), r.URL.Query().Get("personaId")); err != nil {
		httperr.Write(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ws.Session.Snapshot())
}

func (h *Handler) handleDismissError(w http.ResponseWriter, r *http.Request) {
	ws, _ := middleware.WorkspaceFrom(r.Context())
	ws.Session.DismissError()
	utils.RespondJSON(w, http.StatusOK, ws.Session.Snapshot())
}
