package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/lamplight/gatehouse/pkg/jwtx"
	"github.com/lamplight/gatehouse/pkg/slogx"
)

// AccessValidator checks a bearer access token end to end: signature,
// expiry, issuer/audience, token version, and revocation.
type AccessValidator interface {
	ValidateAccessToken(ctx context.Context, raw string) (jwtx.Claims, error)
}

// AuthnMiddleware authenticates requests via the Authorization header.
// Every failure collapses to a generic 401; the specific reason stays in
// the logs so unauthenticated callers learn nothing about token state.
func AuthnMiddleware(v AccessValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.ValidateAccessToken(ctx, raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				log.Warn("access token rejected", "err", err)
				return
			}

			// Inject into context for downstream handlers.
			ctx = contextWithAuth(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

// RFC 6750 challenge header plus the service's uniform error body.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
