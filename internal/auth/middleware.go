package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type ctxKey string

const clientIDKey ctxKey = "client_id"

// StaticClient is the client id attached to requests authenticated with
// the shared API token.
const StaticClient = "api-token"

func ClientIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(clientIDKey)
	id, ok := v.(string)
	return id, ok
}

func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

// RequireAuth accepts either the static API token (exact match) or a
// device token signed by jwtSvc. jwtSvc may be nil.
func RequireAuth(apiToken string, jwtSvc *JWT) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" || !strings.HasPrefix(h, "Bearer ") {
				unauthorized(w, "Missing or invalid authorization header")
				return
			}
			token := strings.TrimPrefix(h, "Bearer ")

			if apiToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(apiToken)) == 1 {
				next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), StaticClient)))
				return
			}
			if jwtSvc != nil {
				if cid, err := jwtSvc.Verify(token); err == nil {
					next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), cid)))
					return
				}
			}
			unauthorized(w, "Invalid authentication token")
		})
	}
}

// RequireStatic only lets the shared API token through. Used for issuing
// device tokens so a device token cannot mint more of itself.
func RequireStatic(apiToken string) func(http.Handler) http.Handler {
	return RequireAuth(apiToken, nil)
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
