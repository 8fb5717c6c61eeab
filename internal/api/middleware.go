package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// WithRequestID tags every request with a generated id, echoes it back in the
// X-Request-Id header, and logs request arrival with it so attempts deeper in
// the strategy matrix can be correlated to the inbound call.
func WithRequestID(log hclog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		log.Info("request received",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
		)
		next.ServeHTTP(w, r)
	})
}
