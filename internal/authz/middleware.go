package authz

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gatepass-erp/gatepass-erp/internal/platform/httpx"
	"github.com/gatepass-erp/gatepass-erp/internal/shared"
)

// AdminRole is the role allowed onto the permission administration surface.
const AdminRole = "Admin"

// Middleware wires authorization checks for HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Store    Store
	Logger   *slog.Logger
}

// Require ensures the current user holds at least min on (entity, action).
// Denials report both the held and the required level.
func (m Middleware) Require(entity, action string, min Level) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := shared.UserIDFromContext(r.Context())
			if userID == 0 {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}

			decision, err := m.Resolver.Authorize(r.Context(), userID, entity, action, min)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authorize",
						slog.Int64("user_id", userID),
						slog.String("key", NewKey(entity, action).String()),
						slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !decision.Allowed {
				httpx.ProblemWithExtra(w, http.StatusForbidden, "Forbidden",
					"insufficient permission for "+NewKey(entity, action).String(),
					map[string]any{
						"actual":   int(decision.Level),
						"required": int(decision.Required),
					})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin restricts a route group to users holding the Admin role.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := shared.UserIDFromContext(r.Context())
		if userID == 0 {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}

		role, err := m.Store.UserRole(r.Context(), userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				httpx.RespondError(w, fmt.Errorf("unknown user: %w", httpx.ErrForbidden))
				return
			}
			if m.Logger != nil {
				m.Logger.Error("lookup user role", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		if role != AdminRole {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
