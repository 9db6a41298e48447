package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/kanban/internal/auth"
)

// AccessTokenParam is the query parameter WebSocketAuth reads a token from.
const AccessTokenParam = "access_token"

// Auth authenticates requests with an access token from the Authorization
// header.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, false)
}

// WebSocketAuth is Auth for the WebSocket upgrade. Browsers cannot set
// headers on the upgrade request, so the access_token query parameter is
// accepted when no Authorization header is present.
func WebSocketAuth(jwtSecret string) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, true)
}

func authenticate(jwtSecret string, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := extractBearer(r)
			if tok == "" && allowQuery {
				tok = r.URL.Query().Get(AccessTokenParam)
			}
			if tok != "" {
				ctx, ok := authenticateJWT(r.Context(), tok, jwtSecret)
				if ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			writeError(w, http.StatusUnauthorized, "not authorized, token failed")
		})
	}
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	return ""
}

func authenticateJWT(ctx context.Context, tokenStr, secret string) (context.Context, bool) {
	claims, err := auth.ValidateToken(secret, tokenStr)
	if err != nil {
		return ctx, false
	}

	p, err := claims.Principal()
	if err != nil {
		log.Debug().Err(err).Msg("auth: token rejected")
		return ctx, false
	}

	return WithPrincipal(ctx, p), true
}

// writeError writes the API error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"error":"` + msg + `"}`))
}
