package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cabview.railmap.org/internal/app"
	"cabview.railmap.org/internal/appconf"
	"cabview.railmap.org/internal/auth"
	"cabview.railmap.org/internal/clock"
	"cabview.railmap.org/internal/logging"
	"cabview.railmap.org/internal/mapview"
	"cabview.railmap.org/internal/metrics"
	"cabview.railmap.org/internal/railway"
	"cabview.railmap.org/internal/refdata"
	"cabview.railmap.org/internal/store"
	"cabview.railmap.org/internal/textproc"
)

const testJWTSecret = "restapi-test-secret-0123456789abcdef"

const testLinesCSV = "line_cd,company_cd,line_name,line_name_k\n" +
	"11302,2,JR山手線,ヤマノテセン\n" +
	"11312,2,JR中央線(快速),チュウオウセン\n"

const testStationsCSV = "station_cd,station_name,station_name_k,line_cd,lon,lat\n" +
	"1130201,東京,トウキョウ,11302,139.766103,35.681391\n" +
	"1130202,神田,カンダ,11302,139.770641,35.691173\n" +
	"1130203,秋葉原,アキハバラ,11302,139.774219,35.698683\n" +
	"1131201,東京,トウキョウ,11312,139.766103,35.681391\n" +
	"1131202,神田,カンダ,11312,139.770641,35.691173\n"

// testAPI bundles a RestAPI over an in-memory store with its full handler.
type testAPI struct {
	*RestAPI
	handler http.Handler
	clock   *clock.MockClock
}

func createTestApi(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	mc := clock.NewMockClock(time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC))
	logger := logging.NewLoggerWithWriter(&bytes.Buffer{}, false, false)

	st, err := store.Open(ctx, store.Config{DBPath: ":memory:", Env: appconf.Test, Clock: mc})
	require.NoError(t, err)

	ref, err := refdata.LoadCSV(strings.NewReader(testLinesCSV), strings.NewReader(testStationsCSV))
	require.NoError(t, err)

	verifier, err := auth.NewVerifier(testJWTSecret, mc, logger)
	require.NoError(t, err)

	m := metrics.NewWithLogger(logger)
	registry := mapview.NewRegistry(st, mapview.Options{
		ThresholdMeters: appconf.DefaultClickThresholdMeters,
		Clock:           mc,
		Logger:          logger,
		Recorder:        m,
	}, time.Hour)
	registry.Reload(ctx)

	application := &app.Application{
		Config: appconf.Config{
			Env:                  appconf.Test,
			ApiKeys:              []string{"ops-key"},
			RateLimit:            100,
			DBPath:               ":memory:",
			ClickThresholdMeters: appconf.DefaultClickThresholdMeters,
		},
		Logger:        logger,
		Store:         st,
		Reference:     ref,
		Registry:      registry,
		TextProcessor: textproc.LocalConverter{},
		Auth:          verifier,
		Clock:         mc,
		Metrics:       m,
	}

	api := NewRestAPI(application)
	t.Cleanup(func() {
		api.Shutdown()
		application.Close()
	})
	return &testAPI{RestAPI: api, handler: api.Handler(), clock: mc}
}

func (ta *testAPI) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := ta.Auth.IssueToken(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ta *testAPI) makeAdmin(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, ta.Store.AddAdmin(context.Background(), userID))
}

// seedLine stores a line directly and reloads the map.
func (ta *testAPI) seedLine(t *testing.T, line railway.Line) {
	t.Helper()
	require.NoError(t, ta.Store.AddLine(context.Background(), line))
	ta.Registry.Reload(context.Background())
}

func yamanoteLine(userID string) railway.Line {
	return railway.Line{
		VideoID:  "aaaaaaaaaaa",
		LineName: "JR山手線",
		LineCode: "11302",
		UserID:   userID,
		Stations: []railway.Station{
			{Code: "1130201", Name: "東京", StartTime: 0, Lat: 35.681391, Lon: 139.766103},
			{Code: "1130202", Name: "神田", StartTime: 95, Lat: 35.691173, Lon: 139.770641},
			{Code: "1130203", Name: "秋葉原", StartTime: 190, Lat: 35.698683, Lon: 139.774219},
		},
	}
}

// serveJSON sends a request through the full handler stack. body may be nil,
// a string or any JSON-encodable value.
func (ta *testAPI) serveJSON(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	return rr
}

type testResponse struct {
	Code int             `json:"code"`
	Text string          `json:"text"`
	Data json.RawMessage `json:"data"`
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) testResponse {
	t.Helper()
	var resp testResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

// decodeEntry decodes data.entry into dst.
func decodeEntry(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var data struct {
		Entry json.RawMessage `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(decodeResponse(t, rr).Data, &data))
	require.NoError(t, json.Unmarshal(data.Entry, dst))
}

// decodeList decodes data.list into dst.
func decodeList(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var data struct {
		List json.RawMessage `json:"list"`
	}
	require.NoError(t, json.Unmarshal(decodeResponse(t, rr).Data, &data))
	require.NoError(t, json.Unmarshal(data.List, dst))
}
