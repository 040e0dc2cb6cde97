package middleware

import (
	"net/http"
	"strings"

	"github.com/phrazzld/render-api/internal/api/shared"
)

// CredentialMiddleware extracts the caller's provider credential from the
// Authorization header and stores it in the request context. The credential
// is opaque to the gateway: it is forwarded upstream and used as the rate
// limiting session key, but never validated, persisted, or logged.
//
// Requests without a credential pass through; handlers decide whether one is
// required for the operation.
func CredentialMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if credential := bearerToken(r); credential != "" {
			r = r.WithContext(shared.SetCredential(r.Context(), credential))
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken returns the token from an "Authorization: Bearer <token>"
// header, or "" when the header is absent or malformed.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
