package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/service/workspace"
	"github.com/adultally/ally/backend/pkg/utils"
)

// UserCookie carries the signed-in user id.
const UserCookie = "userId"

type workspaceKey struct{}

// WithWorkspace returns ctx carrying ws.
func WithWorkspace(ctx context.Context, ws *workspace.Workspace) context.Context {
	return context.WithValue(ctx, workspaceKey{}, ws)
}

// WorkspaceFrom returns the workspace attached by RequireUser.
func WorkspaceFrom(ctx context.Context) (*workspace.Workspace, bool) {
	ws, ok := ctx.Value(workspaceKey{}).(*workspace.Workspace)
	return ws, ok
}

// RequireUser resolves the user cookie to a workspace. Requests without a
// session are answered with 401.
func RequireUser(workspaces *workspace.Manager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(UserCookie)
			if err != nil || cookie.Value == "" {
				utils.RespondError(w, http.StatusUnauthorized, "not signed in")
				return
			}

			ws, err := workspaces.Get(r.Context(), cookie.Value)
			if err != nil {
				logger.Error("failed to open workspace", zap.String("user", cookie.Value), zap.Error(err))
				utils.RespondError(w, http.StatusInternalServerError, "failed to open workspace")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithWorkspace(r.Context(), ws)))
		})
	}
}

// SetUserCookie starts a session for userID.
func SetUserCookie(w http.ResponseWriter, userID string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     UserCookie,
		Value:    userID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearUserCookie ends the session.
func ClearUserCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     UserCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
