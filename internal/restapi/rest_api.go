// Package restapi is the HTTP surface of cabview: line data, submissions,
// moderation, reference lookups and the per-view map sessions.
package restapi

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"cabview.railmap.org/internal/app"
	"cabview.railmap.org/internal/clock"
	"cabview.railmap.org/internal/logging"
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
	validate    *validator.Validate
}

// NewRestAPI creates the API over application. Shutdown must be called to
// stop background work.
func NewRestAPI(application *app.Application) *RestAPI {
	if application.Logger == nil {
		application.Logger = logging.NewLogger(false, false)
	}
	if application.Clock == nil {
		application.Clock = clock.RealClock{}
	}
	return &RestAPI{
		Application: application,
		rateLimiter: NewRateLimitMiddleware(application.Config.RateLimit, time.Second, application.Config.ApiKeys, application.Clock),
		validate:    newValidator(),
	}
}

// newValidator reports fields under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Shutdown stops the rate limiter's cleanup goroutine.
func (api *RestAPI) Shutdown() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}
