package rbac

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/pharmapos/pharmapos/internal/platform/httpx"
	"github.com/pharmapos/pharmapos/internal/shared"
)

// Roles recognised by the system. Roles are flat: ADMIN may do everything,
// CASHIER is limited to selling and stock lookups.
const (
	RoleAdmin   = "ADMIN"
	RoleCashier = "CASHIER"
)

// Middleware wires role authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireRole ensures the current user holds one of the given roles.
// An empty role list only requires an authenticated session.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	normalized := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.UserID() == 0 {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if len(normalized) == 0 || hasRole(sess.Role(), normalized) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("role denied",
					slog.Int64("user_id", sess.UserID()),
					slog.String("role", sess.Role()),
					slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, httpx.ErrForbidden)
		})
	}
}

// RequireAuthenticated admits any logged-in user regardless of role.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return m.RequireRole()
}

func normalizeRoles(roles []string) []string {
	unique := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToUpper(role))
		if role == "" {
			continue
		}
		unique[role] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for role := range unique {
		normalized = append(normalized, role)
	}
	return normalized
}

func hasRole(role string, required []string) bool {
	role = strings.ToUpper(role)
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}
