package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/stacksapp/stacks-server/internal/service"
)

type contextKey string

const (
	requestURLKey contextKey = "requestURL"
	remoteAddrKey contextKey = "remoteAddr"
	identityKey   contextKey = "identity"
)

// captureRequestURL stashes the request URL and client address in the
// context so huma handlers can read raw query parameters, build
// pagination links, and record session origins. Unknown query
// parameters are ignored rather than rejected, which huma's typed
// inputs alone would not allow.
func captureRequestURL(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := *r.URL
		ctx := context.WithValue(r.Context(), requestURLKey, &u)
		ctx = context.WithValue(ctx, remoteAddrKey, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestURL returns the original request URL, or an empty URL when
// the middleware did not run (direct handler tests).
func requestURL(ctx context.Context) *url.URL {
	if u, ok := ctx.Value(requestURLKey).(*url.URL); ok {
		return u
	}
	return &url.URL{}
}

// remoteAddr returns the client address recorded by the middleware,
// already unwrapped from proxy headers by chi's RealIP.
func remoteAddr(ctx context.Context) string {
	if addr, ok := ctx.Value(remoteAddrKey).(string); ok {
		return addr
	}
	return ""
}

// credentialPaths are rate limited per client IP to slow down
// credential stuffing. Other routes are not limited.
var credentialPaths = map[string]bool{
	"/api/v1/auth/token":    true,
	"/api/v1/auth/register": true,
	"/api/v1/setup":         true,
}

func (s *Server) rateLimitCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && credentialPaths[r.URL.Path] {
			if !s.authLimiter.Allow(r.RemoteAddr) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"code":"RATE_LIMITED","message":"Too many attempts, slow down"}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware resolves the bearer token into an identity when one
// is presented. It is lenient: a missing or invalid token leaves the
// request anonymous, and the route gates decide what that means.
func authMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
				user, claims, err := authService.VerifyAccessToken(r.Context(), token)
				if err == nil {
					ident := &Identity{User: user, SessionID: claims.SessionID}
					ctx := context.WithValue(r.Context(), identityKey, ident)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
