package app

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequestHasInvalidAPIKey checks the operator key on internal endpoints such
// as /metrics. The key comes from the "key" query parameter or an
// X-API-Key header. With no keys configured every request is allowed.
func (app *Application) RequestHasInvalidAPIKey(r *http.Request) bool {
	if len(app.Config.ApiKeys) == 0 {
		return false
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		key = strings.TrimSpace(r.Header.Get("X-API-Key"))
	}
	return app.IsInvalidAPIKey(key)
}

func (app *Application) IsInvalidAPIKey(key string) bool {
	if key == "" {
		return true
	}

	validKeys := app.Config.ApiKeys
	for _, validKey := range validKeys {
		// Use constant-time comparison to prevent timing attacks
		if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
			return false
		}
	}

	return true
}
