package policy

import (
	"net/http"
	"strings"

	"live-quiz-service/internal/auth"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (auth.Principal, error)
}

// Middleware attaches the bearer principal to the request context and
// enforces the route table. Invalid tokens count as no token, so public
// routes stay reachable.
func Middleware(parser TokenParser, checker *Checker, deny func(w http.ResponseWriter, status int)) func(http.Handler) http.Handler {
	if deny == nil {
		deny = func(w http.ResponseWriter, status int) { http.Error(w, http.StatusText(status), status) }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var principal *auth.Principal
			if token, ok := bearerToken(r); ok {
				if p, err := parser.Parse(token); err == nil {
					principal = &p
					r = r.WithContext(auth.WithPrincipal(r.Context(), p))
				}
			}
			switch checker.Check(r.URL.Path, principal) {
			case Allow:
				next.ServeHTTP(w, r)
			case Unauthenticated:
				w.Header().Set("WWW-Authenticate", `Bearer realm="live-quiz"`)
				deny(w, http.StatusUnauthorized)
			default:
				if principal == nil {
					deny(w, http.StatusUnauthorized)
					return
				}
				deny(w, http.StatusForbidden)
			}
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}
