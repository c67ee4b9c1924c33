// Package webui serves the browser map assets and a debug page for
// inspecting the running server outside production.
package webui

import (
	"net/http"

	"cabview.railmap.org/internal/app"
)

// StaticDir is the directory, relative to the working directory, holding the
// map page and its scripts.
const StaticDir = "static"

type WebUI struct {
	*app.Application
}

// SetWebUIRoutes registers the debug page and the static map assets.
func (webUI *WebUI) SetWebUIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug/", webUI.debugIndexHandler)
	mux.HandleFunc("GET /static/", webUI.staticHandler)
}
