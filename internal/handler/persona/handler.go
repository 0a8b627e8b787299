package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/handler/httperr"
	"github.com/adultally/ally/backend/internal/middleware"
	"github.com/adultally/ally/backend/internal/model/persona"
	"github.com/adultally/ally/backend/pkg/utils"
)

// Handler serves the persona catalog and the user's persona profiles.
type Handler struct {
	registry *persona.Registry
	logger   *zap.Logger
}

// New creates the persona handler.
func New(registry *persona.Registry, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// RegisterRoutes registers the public catalog route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
}

// RegisterUserRoutes registers routes that need a signed-in user.
func (h *Handler) RegisterUserRoutes(r chi.Router) {
	r.Get("/me/personas", h.handleSidebar)
	r.Get("/me/personas/{personaID}/profile", h.handleGetProfile)
	r.Put("/me/personas/{personaID}/profile", h.handlePutProfile)
}

type catalogEntry struct {
	persona.Variant
	Default persona.Profile `json:"default"`
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	variants := h.registry.List()
	out := make([]catalogEntry, 0, len(variants))
	for _, v := range variants {
		def, _ := h.registry.DefaultProfile(v.ID)
		out = append(out, catalogEntry{Variant: v, Default: def})
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"personas":  out,
		"languages": persona.Languages,
		"genders":   persona.Genders,
		"palette":   persona.Palette,
	})
}

func (h *Handler) handleSidebar(w http.ResponseWriter, r *http.Request) {
	ws, _ := middleware.WorkspaceFrom(r.Context())
	list, err := ws.Personas(r.Context())
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ws, _ := middleware.WorkspaceFrom(r.Context())
	p, err := ws.Profiles.Profile(r.Context(), chi.URLParam(r, "personaID"))
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	ws, _ := middleware.WorkspaceFrom(r.Context())
	personaID := chi.URLParam(r, "personaID")

	var payload persona.Profile
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ws.Profiles.SetProfile(r.Context(), personaID, payload); err != nil {
		httperr.Write(w, h.logger, err)
		return
	}

	p, err := ws.Profiles.Profile(r.Context(), personaID)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}
