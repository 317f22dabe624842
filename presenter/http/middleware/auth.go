package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hashanchor/receipt-bridge/presenter/http/render"
)

const adminRole = "admin"

var (
	ErrMissingAuthToken  = errors.New("missing bearer token")
	ErrInvalidAuthToken  = errors.New("invalid bearer token")
	ErrAdminRoleRequired = errors.New("admin role required")
)

// RequireAdmin authenticates mutating endpoints: the caller must present a
// bearer JWT signed with the shared secret and carrying an admin role claim.
func RequireAdmin(secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw := strings.TrimPrefix(header, "Bearer ")
			if raw == "" || raw == header {
				render.Error(w, r, http.StatusUnauthorized, ErrMissingAuthToken)
				return
			}
			token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				render.Error(w, r, http.StatusUnauthorized, ErrInvalidAuthToken)
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || claims["role"] != adminRole {
				render.Error(w, r, http.StatusForbidden, ErrAdminRoleRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
