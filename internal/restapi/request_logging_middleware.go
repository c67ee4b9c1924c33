package restapi

import (
	"log/slog"
	"net/http"

	"cabview.railmap.org/internal/clock"
	"cabview.railmap.org/internal/logging"
)

// NewRequestLoggingMiddleware logs every request once it has been served.
// Downstream handlers find a request scoped logger via logging.FromContext.
func NewRequestLoggingMiddleware(logger *slog.Logger, c clock.Clock) func(http.Handler) http.Handler {
	if c == nil {
		c = clock.RealClock{}
	}
	logger = logging.WithComponent(logger, "http_server")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := c.Now()
			reqID := GetRequestID(r.Context())

			reqLogger := logger
			if reqID != "" {
				reqLogger = logger.With(slog.String("request_id", reqID))
			}
			r = r.WithContext(logging.WithLogger(r.Context(), reqLogger))

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r)

			logging.LogHTTPRequest(logger,
				r.Method,
				r.URL.Path,
				wrapped.statusCode,
				float64(clock.Since(c, start).Nanoseconds())/1e6,
				slog.String("request_id", reqID),
				slog.String("user_agent", r.Header.Get("User-Agent")))
		})
	}
}
