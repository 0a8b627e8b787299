package chat

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/model/persona"
	"github.com/adultally/ally/backend/internal/service/ai"
	"github.com/adultally/ally/backend/pkg/utils"
)

// CompletionHandler is the stateless completion endpoint used by clients that
// keep their conversation locally.
type CompletionHandler struct {
	registry  *persona.Registry
	completer ai.Completer
	logger    *zap.Logger
}

// NewCompletion creates the completion endpoint.
func NewCompletion(registry *persona.Registry, completer ai.Completer, logger *zap.Logger) *CompletionHandler {
	return &CompletionHandler{registry: registry, completer: completer, logger: logger}
}

// RegisterRoutes registers POST /chat.
func (h *CompletionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

type completionRequest struct {
	ai.Request
	PersonaName string `json:"personaName"`
}

func (h *CompletionHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload completionRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	req := payload.Request
	if req.Name == "" {
		req.Name = payload.PersonaName
	}
	if lang, ok := persona.ParseLanguage(string(req.Language)); ok {
		req.Language = lang
	} else {
		req.Language = persona.English
	}
	if req.System == "" {
		if _, ok := h.registry.FindByID(req.PersonaID); ok {
			req.System = h.registry.ResolvePrompt(req.PersonaID, req.Language, req.Name)
		}
	}

	reply, err := h.completer.Complete(r.Context(), req)
	if err != nil {
		h.logger.Error("chat completion failed", zap.String("persona", req.PersonaID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Chat failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"response": reply})
}
