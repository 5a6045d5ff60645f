package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// AdminAuth guards the management API with a static bearer token. With no
// token configured every request is refused.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return adminAuth(token, false)
}

// AdminAuthOrQuery is AdminAuth that also accepts the token as ?token=, for
// links an operator opens in a browser.
func AdminAuthOrQuery(token string) func(http.Handler) http.Handler {
	return adminAuth(token, true)
}

func adminAuth(token string, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				logrus.Warn("admin_token is not set; management API disabled")
				http.Error(w, "Management API disabled", http.StatusForbidden)
				return
			}

			presented, ok := "", false
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
					http.Error(w, "Authorization header format must be 'Bearer <token>'", http.StatusUnauthorized)
					return
				}
				presented, ok = parts[1], true
			} else if allowQuery && r.URL.Query().Get("token") != "" {
				presented, ok = r.URL.Query().Get("token"), true
			}
			if !ok {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				logrus.WithField("path", r.URL.Path).Warn("invalid admin token")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
