package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/pecal/pecal-reminders/internal/api/shared"
)

// CronAuth guards internal endpoints with a shared bearer secret. A blank
// secret means the endpoints are not configured and every request gets 500.
type CronAuth struct {
	secret string
}

// NewCronAuth creates a CronAuth for the given secret.
func NewCronAuth(secret string) *CronAuth {
	return &CronAuth{secret: strings.TrimSpace(secret)}
}

// Authenticate is the middleware handler.
func (a *CronAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.secret == "" {
			shared.RespondWithError(w, r, http.StatusInternalServerError, "CRON_SECRET is not configured")
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(a.secret)) != 1 {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Unauthorized", nil,
				shared.WithElevatedLogLevel())
			return
		}

		next.ServeHTTP(w, r)
	})
}
