package app

import (
	"log/slog"

	"cabview.railmap.org/internal/appconf"
	"cabview.railmap.org/internal/auth"
	"cabview.railmap.org/internal/clock"
	"cabview.railmap.org/internal/logging"
	"cabview.railmap.org/internal/mapview"
	"cabview.railmap.org/internal/metrics"
	"cabview.railmap.org/internal/refdata"
	"cabview.railmap.org/internal/store"
	"cabview.railmap.org/internal/textproc"
)

// Application holds the dependencies shared by HTTP handlers, helpers and
// middleware.
type Application struct {
	Config        appconf.Config
	Logger        *slog.Logger
	Store         *store.Store
	Reference     *refdata.Dataset
	Registry      *mapview.Registry
	TextProcessor textproc.Converter
	Auth          *auth.Verifier
	Clock         clock.Clock
	Metrics       *metrics.Metrics
}

// Close releases the application's resources.
func (app *Application) Close() {
	if app.Registry != nil {
		app.Registry.Close()
	}
	if app.Metrics != nil {
		app.Metrics.Shutdown()
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			logging.LogError(app.Logger, "failed to close store", err)
		}
	}
}
