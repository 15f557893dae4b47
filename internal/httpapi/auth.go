package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// JWTClaims represents the claims in the JWT token
type JWTClaims struct {
	jwt.RegisteredClaims
	Clinician string `json:"clinician,omitempty"`
}

// withAuth requires a valid HS256 bearer token when a JWT secret is
// configured and passes requests through untouched otherwise.
func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.cfg.JWTSecret == "" {
			next(w, req)
			return
		}

		authHeader := req.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, KindUnauthorized, "missing authorization header")
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeError(w, http.StatusUnauthorized, KindUnauthorized, "invalid authorization format")
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(r.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, KindUnauthorized, "invalid token")
			return
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok {
			writeError(w, http.StatusUnauthorized, KindUnauthorized, "invalid token claims")
			return
		}

		ctx := context.WithValue(req.Context(), claimsContextKey, claims)
		next(w, req.WithContext(ctx))
	}
}

// getClaims extracts the authenticated caller from context
func getClaims(ctx context.Context) *JWTClaims {
	claims, _ := ctx.Value(claimsContextKey).(*JWTClaims)
	return claims
}
