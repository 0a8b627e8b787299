package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/handler/auth"
	"github.com/adultally/ally/backend/internal/handler/chat"
	onboardingHandler "github.com/adultally/ally/backend/internal/handler/onboarding"
	"github.com/adultally/ally/backend/internal/handler/persona"
	"github.com/adultally/ally/backend/internal/handler/stream"
	middlewarePkg "github.com/adultally/ally/backend/internal/middleware"
	personaModel "github.com/adultally/ally/backend/internal/model/persona"
	"github.com/adultally/ally/backend/internal/service/ai"
	"github.com/adultally/ally/backend/internal/service/identity"
	"github.com/adultally/ally/backend/internal/service/workspace"
	"github.com/adultally/ally/backend/pkg/utils"
)

// Deps are the services the HTTP surface needs.
type Deps struct {
	Registry       *personaModel.Registry
	Workspaces     *workspace.Manager
	Resolver       identity.Resolver
	Completer      ai.Completer
	AllowedOrigins []string
	SecureCookies  bool
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	personaHandler := persona.New(deps.Registry, logger)
	authHandler := auth.New(deps.Resolver, deps.Workspaces, deps.SecureCookies, logger)
	onboarding := onboardingHandler.New(logger)
	sessionHandler := chat.New(logger)
	streamHandler := stream.New(logger, nil)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		authHandler.RegisterRoutes(api)

		if deps.Completer != nil {
			chat.NewCompletion(deps.Registry, deps.Completer, logger).RegisterRoutes(api)
		} else {
			api.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "completion backend unavailable")
			})
		}

		api.Group(func(user chi.Router) {
			user.Use(middlewarePkg.RequireUser(deps.Workspaces, logger))

			onboarding.RegisterRoutes(user)
			personaHandler.RegisterUserRoutes(user)

			user.Group(func(ready chi.Router) {
				ready.Use(onboardingHandler.RequireReady)
				sessionHandler.RegisterRoutes(ready)
				streamHandler.RegisterRoutes(ready)
			})
		})
	})

	return r
}
