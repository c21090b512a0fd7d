package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/user"
)

// AccessValidator checks bearer access tokens. *authcore.Service satisfies it.
type AccessValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (authcore.Identity, bool)
}

// ProfileReader loads the account behind an identity. *authcore.Service
// satisfies it.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (user.User, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by [RequireAccess].
func IdentityFromContext(ctx context.Context) (authcore.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(authcore.Identity)
	return id, ok
}

// WithIdentity stores id on ctx the way [RequireAccess] does.
func WithIdentity(ctx context.Context, id authcore.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// RequireAccess rejects requests without a valid bearer access token and
// stores the token's identity on the request context.
func RequireAccess(v AccessValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			id, ok := v.ValidateAccessToken(r.Context(), token)
			if !ok {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin must run after [RequireAccess]. It loads the account and
// rejects callers whose record is not an active admin.
func RequireAdmin(p ProfileReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok || p == nil {
				unauthorized(w)
				return
			}

			u, err := p.GetProfile(r.Context(), id.UserID)
			if err != nil || !u.IsActive || !u.IsAdmin {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
