package handler

import (
	"net/http"
	"strings"

	"pvsf-admin/internal/middleware"
)

// actorFromRequest reads the actor identity out of the capability token
// claims. The auth middleware guarantees presence on admin routes.
func actorFromRequest(r *http.Request) string {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return ""
	}
	return strings.TrimSpace(claims.Actor)
}
