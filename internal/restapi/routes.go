package restapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cabview.railmap.org/internal/auth"
)

// SetRoutes registers every API route on mux.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	user := auth.RequireUser
	admin := auth.RequireAdmin(api.Store, api.Logger)

	mux.HandleFunc("GET /healthz", api.healthHandler)
	mux.Handle("GET /metrics", api.requireAPIKey(api.metricsHandler()))
	mux.Handle("GET /api/config", CacheControlMiddleware(cacheShort, http.HandlerFunc(api.configHandler)))

	// Lines and their popups
	mux.Handle("GET /api/lines", CacheControlMiddleware(cacheNone, http.HandlerFunc(api.listLinesHandler)))
	mux.Handle("POST /api/lines", user(http.HandlerFunc(api.submitLineHandler)))
	mux.Handle("DELETE /api/lines/{videoId}/{lineCode}", user(http.HandlerFunc(api.deleteLineHandler)))
	mux.Handle("POST /api/lines/{videoId}/{lineCode}/stations", user(http.HandlerFunc(api.addStationsHandler)))
	mux.HandleFunc("GET /api/lines/{videoId}/{lineCode}/popup", api.linePopupHandler)
	mux.HandleFunc("GET /api/lines/{videoId}/{lineCode}/stations/{code}/popup", api.stationPopupHandler)
	mux.Handle("DELETE /api/mappings/{id}", admin(http.HandlerFunc(api.deleteMappingHandler)))

	// Reports and moderation
	mux.Handle("POST /api/reports", user(http.HandlerFunc(api.createReportHandler)))
	mux.Handle("GET /api/admin/reports", admin(http.HandlerFunc(api.listReportsHandler)))
	mux.Handle("PATCH /api/admin/reports/{id}", admin(http.HandlerFunc(api.updateReportHandler)))
	mux.Handle("GET /api/admin/users", admin(http.HandlerFunc(api.contributorsHandler)))
	mux.Handle("GET /api/admin/users/{userId}/mappings", admin(http.HandlerFunc(api.userMappingsHandler)))

	// Reference data and text conversion for the submit form
	mux.Handle("GET /api/reference/lines", CacheControlMiddleware(cacheReference, http.HandlerFunc(api.referenceLinesHandler)))
	mux.Handle("GET /api/reference/stations", CacheControlMiddleware(cacheReference, http.HandlerFunc(api.referenceStationsHandler)))
	mux.HandleFunc("POST /api/process-station", api.processStationHandler)

	// Map sessions
	mux.HandleFunc("POST /api/map/sessions", api.createSessionHandler)
	mux.HandleFunc("GET /api/map/sessions/{id}", api.sessionInfoHandler)
	mux.HandleFunc("DELETE /api/map/sessions/{id}", api.deleteSessionHandler)
	mux.HandleFunc("POST /api/map/sessions/{id}/click", api.clickHandler)
	mux.HandleFunc("PUT /api/map/sessions/{id}/selection", api.selectLineHandler)
	mux.HandleFunc("DELETE /api/map/sessions/{id}/selection", api.clearSelectionHandler)
	mux.HandleFunc("POST /api/map/sessions/{id}/play", api.playHandler)
	mux.HandleFunc("GET /api/map/sessions/{id}/player", api.playerHandler)
}

// WithMiddleware wraps mux in the server's middleware stack. Websocket
// upgrades bypass compression.
func (api *RestAPI) WithMiddleware(mux *http.ServeMux) http.Handler {
	var h http.Handler = MetricsHandler(api.Metrics)(mux)
	// Limits are keyed by user, so authentication runs first.
	h = api.rateLimiter.Handler()(h)
	if api.Auth != nil {
		h = api.Auth.Middleware(h)
	}
	h = NewRequestLoggingMiddleware(api.Logger, api.Clock)(h)
	h = RequestIDMiddleware(h)

	plain := h
	compressed := gzhttp.GzipHandler(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			plain.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

// Handler returns the API routes behind the full middleware stack.
func (api *RestAPI) Handler() http.Handler {
	mux := http.NewServeMux()
	api.SetRoutes(mux)
	return api.WithMiddleware(mux)
}

func (api *RestAPI) metricsHandler() http.Handler {
	if api.Metrics == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{})
}

// requireAPIKey guards operator endpoints with the configured API keys.
func (api *RestAPI) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.sendError(w, r, http.StatusUnauthorized, "permission denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}
