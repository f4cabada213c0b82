package utils

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to the request context by
// AuthMiddleware and consumed by the authorization policy.
type Principal struct {
	UserID uint
	Role   string
}

// AccessClaims carries the role alongside the standard subject claim so
// handlers never have to refetch the user row just to branch on role.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func GetPrincipal(r *http.Request) (Principal, error) {
	p, ok := r.Context().Value(principalKey).(Principal)
	if !ok {
		return Principal{}, errors.New("principal not found in context")
	}
	return p, nil
}

func GetUserIDFromContext(r *http.Request) (uint, error) {
	p, err := GetPrincipal(r)
	if err != nil {
		return 0, err
	}
	return p.UserID, nil
}

func AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.Replace(authHeader, "Bearer ", "", 1)

		claims := &AccessClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(os.Getenv("SECRET_KEY")), nil
		})

		if err != nil || !token.Valid {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		userID, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil {
			http.Error(w, "Invalid user ID in token", http.StatusUnauthorized)
			return
		}

		principal := Principal{UserID: uint(userID), Role: claims.Role}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// WithPrincipal returns a request carrying the given principal. Test hook for
// exercising handlers without minting tokens.
func WithPrincipal(r *http.Request, p Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalKey, p))
}
