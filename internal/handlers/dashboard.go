package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/netsync/apiserver/internal/access"
	"github.com/netsync/apiserver/types"
)

// DashboardRouter registers one welcome endpoint per role, each open to
// that role only.
func DashboardRouter(r chi.Router, guard *access.Guard) {
	dashboards := []struct {
		path  string
		role  types.Role
		title string
	}{
		{"/organizer", types.RoleOrganizer, "Organizer"},
		{"/attendee", types.RoleAttendee, "Attendee"},
		{"/staff", types.RoleStaff, "Staff"},
		{"/super-admin", types.RoleSuperAdmin, "Super Admin"},
	}

	for _, d := range dashboards {
		r.With(RequireRoles(guard, d.role)).Get(d.path, dashboard(d.title))
	}
}

func dashboard(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		writeJSON(w, http.StatusOK, DashboardResponse{
			Message: "Welcome " + title,
			User: ClaimsResponse{
				Subject:   claims.Subject,
				Role:      claims.Role,
				TenantID:  claims.TenantID,
				ExpiresAt: claims.ExpiresAt.Unix(),
			},
		})
	}
}

// RequireRoles authorizes the bearer token against roles and injects the
// decoded claims into the request context.
func RequireRoles(guard *access.Guard, roles ...types.Role) func(http.Handler) http.Handler {
	required := access.Roles(roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			claims, err := guard.Authorize(tokenString, required)
			if err != nil {
				if errors.Is(err, access.ErrForbidden) {
					writeError(w, http.StatusForbidden, "Access denied")
					return
				}
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

type DashboardResponse struct {
	Message string         `json:"message"`
	User    ClaimsResponse `json:"user"`
}

type ClaimsResponse struct {
	Subject   string     `json:"sub"`
	Role      types.Role `json:"role"`
	TenantID  string     `json:"tenant_id,omitempty"`
	ExpiresAt int64      `json:"exp"`
}
