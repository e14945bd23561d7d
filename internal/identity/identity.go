// Package identity extracts the authenticated caller from each request.
//
// Authentication itself happens in a fronting layer; by the time a
// request reaches this core its identity arrives as trusted headers.
package identity

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

const (
	// UserIDHeader carries the authenticated user ID.
	UserIDHeader = "X-User-ID"
	// RoleHeader carries the caller's role ("admin" grants the admin
	// reporting surface).
	RoleHeader = "X-User-Role"
)

type contextKey int

const (
	userIDKey contextKey = iota
	isAdminKey
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// IsAdminFromContext reports whether the caller has the admin role.
func IsAdminFromContext(ctx context.Context) bool {
	if v, ok := ctx.Value(isAdminKey).(bool); ok {
		return v
	}
	return false
}

// Middleware injects the authenticated identity into the request context.
// Requests without a valid user ID are rejected.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" || !userIDPattern.MatchString(userID) {
				http.Error(w, `{"success":false,"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			isAdmin := strings.EqualFold(strings.TrimSpace(r.Header.Get(RoleHeader)), "admin")

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, isAdminKey, isAdmin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
