package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Identity is resolved by the gateway in front of this service and passed
// on as headers.
const (
	UserIDHeader    = "X-User-Id"
	UserRolesHeader = "X-User-Roles"

	RoleAdmin = "admin"
)

type contextKey string

const identityKey contextKey = "identity"

type identity struct {
	userID string
	roles  []string
}

// RequireUser rejects requests without a caller identity with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			unauthorized(w, http.StatusUnauthorized, "missing caller identity")
			return
		}
		id := identity{userID: userID}
		for _, role := range strings.Split(r.Header.Get(UserRolesHeader), ",") {
			if role = strings.TrimSpace(role); role != "" {
				id.roles = append(id.roles, strings.ToLower(role))
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

// RequireAdmin must run after RequireUser.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			unauthorized(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserID returns the caller set by RequireUser.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(identityKey).(identity)
	return id.userID
}

// IsAdmin reports whether the caller has the admin role.
func IsAdmin(ctx context.Context) bool {
	id, _ := ctx.Value(identityKey).(identity)
	for _, role := range id.roles {
		if role == RoleAdmin {
			return true
		}
	}
	return false
}

// WithUser returns ctx carrying userID, for code paths that skip RequireUser.
func WithUser(ctx context.Context, userID string, roles ...string) context.Context {
	return context.WithValue(ctx, identityKey, identity{userID: userID, roles: roles})
}

func unauthorized(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
