package middleware

import (
	"crypto/subtle"
	"net/http"

	"app/internal/logger"
)

// TriggerSecretHeader carries the shared secret the poller and webhook
// relays present on stream trigger calls.
const TriggerSecretHeader = "X-Trigger-Secret"

// TriggerAuthMiddleware gates the stream trigger endpoints on a shared
// secret. Triggers are machine-to-machine calls, not user sessions, so
// they do not carry a user JWT.
func TriggerAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logger.New()
			if secret == "" {
				logger.Error().Msg("Trigger auth middleware configured without a secret; requests will be denied")
				http.Error(w, "Configuration error: trigger secret not set", http.StatusInternalServerError)
				return
			}
			presented := r.Header.Get(TriggerSecretHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				logger.Warn().Str("path", r.URL.Path).Msg("Rejected trigger call with missing or wrong shared secret")
				http.Error(w, "Unauthorized: invalid trigger secret", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
