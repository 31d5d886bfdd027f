package middleware

import (
	"context"
	"net/http"
	"strings"

	tokenward "github.com/averano/tokenward"
	"github.com/averano/tokenward/token"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Guard, if any.
func IdentityFromContext(ctx context.Context) (*tokenward.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*tokenward.Identity)
	return id, ok
}

// Guard returns middleware that verifies the request's bearer token as the
// given type before invoking the next handler. On failure it writes a
// status derived from the error kind and never calls next.
func Guard(svc *tokenward.Service, expected token.Type) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if svc == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, tokenward.ErrTokenMissing)
				return
			}

			id, err := svc.Verify(r.Context(), raw, expected)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StatusForError maps a verification error to an HTTP status code.
// Availability failures surface as 503 so callers can distinguish an
// outage from a bad credential.
func StatusForError(err error) int {
	switch tokenward.Kind(err) {
	case tokenward.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := tokenward.Kind(err)
	http.Error(w, kind.String(), StatusForError(err))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	raw := value[len(bearer):]
	if raw == "" {
		return "", false
	}

	return raw, true
}
