package auth

import (
	"net/http"
)

type Permission string

const (
	PermTranscribe Permission = "stt:transcribe"
	PermSynthesize Permission = "tts:synthesize"
	PermAlign      Permission = "align:solve"
	PermAdminRead  Permission = "admin:read"
	PermWildcard   Permission = "*"
)

// RBAC checks the scopes carried in the token. It is a no-op while the JWT
// middleware is disabled.
type RBAC struct {
	enabled bool
}

func NewRBAC(jwt *JWTMiddleware) *RBAC {
	return &RBAC{enabled: jwt.Enabled()}
}

func (r *RBAC) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !r.enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims := ClaimsFromContext(req.Context())
			if claims == nil {
				writeError(w, http.StatusForbidden, "no claims in context")
				return
			}
			if !HasPermission(claims.Scopes, perm) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func HasPermission(scopes []string, perm Permission) bool {
	for _, p := range scopes {
		if Permission(p) == PermWildcard || Permission(p) == perm {
			return true
		}
	}
	return false
}
