package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"pvsf-admin/internal/model"
)

// CapabilityClaims is the shape of the capability token minted by the
// external authentication service. This service never mints tokens; it only
// consumes the actor identity and the privileged flag.
type CapabilityClaims struct {
	Actor      string `json:"actor"`
	Privileged bool   `json:"privileged"`
	jwt.RegisteredClaims
}

type contextKey string

const capabilityContextKey contextKey = "capability_claims"

type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

func (m *AuthMiddleware) RequireCapability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid authorization header")
			return
		}

		raw := strings.TrimSpace(header[7:])
		claims, err := m.parseToken(raw)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), capabilityContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePrivileged gates the admin surface: every route of this service
// mutates or exposes audit state, so a bare (non-privileged) token gets 403.
func (m *AuthMiddleware) RequirePrivileged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		if !claims.Privileged || strings.TrimSpace(claims.Actor) == "" {
			writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "privileged capability required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) parseToken(raw string) (*CapabilityClaims, error) {
	claims := &CapabilityClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}

func ClaimsFromContext(ctx context.Context) (*CapabilityClaims, bool) {
	claims, ok := ctx.Value(capabilityContextKey).(*CapabilityClaims)
	return claims, ok
}

func writeAuthError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
