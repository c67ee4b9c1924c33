package app

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"cabview.railmap.org/internal/appconf"
)

func TestRequestHasInvalidAPIKey(t *testing.T) {
	a := &Application{Config: appconf.Config{ApiKeys: []string{"k1", "k2"}}}

	tests := []struct {
		name    string
		url     string
		header  string
		invalid bool
	}{
		{name: "query key", url: "/metrics?key=k1", invalid: false},
		{name: "header key", url: "/metrics", header: "k2", invalid: false},
		{name: "wrong key", url: "/metrics?key=nope", invalid: true},
		{name: "missing key", url: "/metrics", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			assert.Equal(t, tt.invalid, a.RequestHasInvalidAPIKey(req))
		})
	}
}

func TestNoConfiguredKeysAllowsAll(t *testing.T) {
	a := &Application{}
	assert.False(t, a.RequestHasInvalidAPIKey(httptest.NewRequest("GET", "/metrics", nil)))
	assert.True(t, a.IsInvalidAPIKey(""))
}
