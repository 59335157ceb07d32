package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/friend-location-relay/internal/adapter/http"
	"github.com/couchcryptid/friend-location-relay/internal/domain"
	"github.com/couchcryptid/friend-location-relay/internal/observability"
	"github.com/couchcryptid/friend-location-relay/internal/relay"
	"github.com/couchcryptid/friend-location-relay/internal/simulator"
	"github.com/couchcryptid/friend-location-relay/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type brokenStore struct{ store.Store }

func (brokenStore) Get(context.Context, string) ([]byte, error)          { return nil, errors.New("down") }
func (brokenStore) Set(context.Context, string, []byte) error            { return errors.New("down") }
func (brokenStore) ScanPrefix(context.Context, string) ([][]byte, error) { return nil, errors.New("down") }
func (brokenStore) Ping(context.Context) error                           { return errors.New("down") }

type fakeSimulations struct {
	started []simulator.Route
	err     error
}

func (f *fakeSimulations) Start(r simulator.Route) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.started = append(f.started, r)
	return "sim-123", nil
}

func (f *fakeSimulations) Stop(id string) bool { return id == "sim-123" }

func (f *fakeSimulations) Active() []simulator.Status {
	return []simulator.Status{{ID: "sim-123", EntityID: "f1", Steps: 20}}
}

var frozen = time.Date(2025, 9, 1, 8, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, st store.Store, opts ...httpadapter.Option) *httpadapter.Server {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { domain.SetClock(nil) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := relay.NewService(st, logger, observability.NewMetricsForTesting())
	return httpadapter.NewServer(":0", svc, logger, opts...)
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- tests ---

func TestHealthReturnsOK(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	rec := do(t, srv, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestOpsEndpoints(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/readyz", "").Code)

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestReadyzReturns503WhenStoreDown(t *testing.T) {
	srv := newTestServer(t, brokenStore{})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/readyz", "").Code)
	// Liveness never probes the store.
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/health", "").Code)
}

func TestLocationLifecycle(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())

	rec := do(t, srv, http.MethodPost, "/friends/location",
		`{"friendId":"1","latitude":14.6760,"longitude":121.0437,"location":"Quezon City","heading":45,"speed":30}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "1", data["friendId"])
	assert.Equal(t, "Just now", data["lastSeen"])
	assert.Equal(t, "2025-09-01T08:30:00Z", data["timestamp"])

	rec = do(t, srv, http.MethodGet, "/friends/location/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	loc := decode(t, rec)["location"].(map[string]any)
	assert.Equal(t, 14.6760, loc["latitude"])
	assert.Equal(t, "Quezon City", loc["location"])

	rec = do(t, srv, http.MethodGet, "/friends/locations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["friends"], 1)

	rec = do(t, srv, http.MethodDelete, "/friends/location/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])

	rec = do(t, srv, http.MethodGet, "/friends/location/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["error"])

	// Deleting again still succeeds.
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodDelete, "/friends/location/1", "").Code)
}

func TestListLocationsEmptyIsArray(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	rec := do(t, srv, http.MethodGet, "/friends/locations", "")
	assert.JSONEq(t, `{"friends":[]}`, rec.Body.String())
}

func TestUpsertLocationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing friendId", `{"latitude":1,"longitude":2}`, http.StatusBadRequest},
		{"latitude out of range", `{"friendId":"x","latitude":91,"longitude":2}`, http.StatusBadRequest},
		{"malformed json", `{"friendId":`, http.StatusBadRequest},
		{"wrong type", `{"friendId":"x","latitude":"north","longitude":2}`, http.StatusBadRequest},
		{"trailing garbage", `{"friendId":"f1","latitude":14.6,"longitude":121.0} this is not json`, http.StatusBadRequest},
		{"two documents", `{"friendId":"f1","latitude":14.6,"longitude":121.0}{"friendId":"f2"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, store.NewMemoryStore())
			rec := do(t, srv, http.MethodPost, "/friends/location", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])

			// Rejected bodies never reach the store.
			list := do(t, srv, http.MethodGet, "/friends/locations", "")
			assert.JSONEq(t, `{"friends":[]}`, list.Body.String())
		})
	}
}

func TestStoreFailureIs500(t *testing.T) {
	srv := newTestServer(t, brokenStore{})
	rec := do(t, srv, http.MethodPost, "/friends/location", `{"friendId":"x","latitude":1,"longitude":2}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode(t, rec)["error"])
}

func TestWeatherRoundTrip(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())

	rec := do(t, srv, http.MethodPost, "/friends/weather",
		`{"friendId":"2","temp":31.5,"condition":"Partly Cloudy","humidity":70,"windSpeed":12,"icon":"partly-cloudy"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/friends/weather/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	weather := decode(t, rec)["weather"].(map[string]any)
	assert.Equal(t, "Partly Cloudy", weather["condition"])
	assert.Equal(t, 31.5, weather["temp"])

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/friends/weather/unknown", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/friends/weather", `{"temp":30}`).Code)
}

func TestStorms(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())

	rec := do(t, srv, http.MethodPost, "/storms",
		`{"stormId":"ompong","name":"Ompong","windSpeed":205,"location":{"lat":18.2,"lon":122.1,"area":"Cagayan"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "ompong", data["id"])
	assert.Equal(t, "Typhoon", data["category"])

	rec = do(t, srv, http.MethodGet, "/storms/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["storms"], 1)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/storms", `{"name":"nameless"}`).Code)
}

func TestGeoJSON(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	do(t, srv, http.MethodPost, "/friends/location", `{"friendId":"1","latitude":14.6760,"longitude":121.0437}`)
	do(t, srv, http.MethodPost, "/storms", `{"stormId":"s1","location":{"lat":18.2,"lon":122.1}}`)
	do(t, srv, http.MethodPost, "/storms", `{"stormId":"s2"}`)

	rec := do(t, srv, http.MethodGet, "/friends/locations.geojson", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, "FeatureCollection", body["type"])
	features := body["features"].([]any)
	require.Len(t, features, 1)
	geom := features[0].(map[string]any)["geometry"].(map[string]any)
	assert.Equal(t, []any{121.0437, 14.6760}, geom["coordinates"])

	rec = do(t, srv, http.MethodGet, "/storms/active.geojson", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["features"], 1)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())

	rec := do(t, srv, http.MethodOptions, "/friends/location", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))

	rec = do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPathPrefix(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore(), httpadapter.WithPathPrefix("/make-server-aedf23c8"))

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/make-server-aedf23c8/health", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)
}

func TestSimulationRoutes(t *testing.T) {
	sims := &fakeSimulations{}
	srv := newTestServer(t, store.NewMemoryStore(), httpadapter.WithSimulations(sims))

	rec := do(t, srv, http.MethodPost, "/friends/simulate",
		`{"friendId":"t1","startLat":14.5833,"startLon":120.9833,"endLat":14.6760,"endLon":121.0437,"durationSeconds":60}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "sim-123", decode(t, rec)["id"])
	require.Len(t, sims.started, 1)
	assert.Equal(t, 60*time.Second, sims.started[0].Duration)
	assert.Equal(t, 0, sims.started[0].Steps)

	rec = do(t, srv, http.MethodPost, "/friends/simulate", `{"friendId":"t1","startLat":14.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/friends/simulate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["simulations"], 1)

	rec = do(t, srv, http.MethodDelete, "/friends/simulate/sim-123", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["stopped"])

	rec = do(t, srv, http.MethodDelete, "/friends/simulate/unknown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["stopped"])
}

func TestSimulationRoutesDisabledByDefault(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	rec := do(t, srv, http.MethodPost, "/friends/simulate", `{}`)
	assert.NotEqual(t, http.StatusAccepted, rec.Code)
}
