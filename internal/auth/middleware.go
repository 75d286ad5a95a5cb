package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/abdghn/youapp-be-test/internal/logger"
)

// TokenVerifier resolves a raw bearer token to an Identity.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Identity, error)
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity stored by Middleware.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return tok, tok != ""
}

// Middleware returns an HTTP middleware enforcing Bearer token auth.
// onReject writes the response for a missing or invalid token.
func Middleware(v TokenVerifier, onReject func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				onReject(w, r, nil)
				return
			}
			id, err := v.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("bearer token rejected", logger.FieldKV("error", err.Error()))
				onReject(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
