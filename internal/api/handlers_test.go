package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapmeasure/internal/interaction"
	"mapmeasure/internal/logging"
	"mapmeasure/internal/measure"
	"mapmeasure/internal/metrics"
	"mapmeasure/internal/render"
	"mapmeasure/internal/session"
)

type testServer struct {
	*httptest.Server
	manager *session.Manager
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	logger := logging.Discard()
	hub := session.NewHub(logger)
	go hub.Run(ctx)
	manager := session.NewManager(session.ManagerOptions{
		Session: session.Config{Machine: interaction.Config{LongPress: 20 * time.Millisecond}, ToleranceMeters: 25},
		Publish: hub.Publish,
		Logger:  logger,
	})
	opts.Logger = logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(metrics.Middleware)
	AttachRoutes(r, manager, hub, opts)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		_ = manager.Close(context.Background())
	})
	return &testServer{Server: srv, manager: manager}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp := srv.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	assert.Contains(t, body.String(), "mapmeasure_http_requests_total")
}

func TestGetSessionReturnsDefaultState(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp := srv.do(t, http.MethodGet, "/api/sessions/default", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[session.View](t, resp)
	assert.Equal(t, "default", v.ID)
	assert.Equal(t, measure.DefaultState().View, v.State.View)
	assert.Equal(t, measure.ToolNone, v.Tool.ActiveTool)
	assert.Empty(t, v.Status.Measurements)
}

func TestInvalidSessionID(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp := srv.do(t, http.MethodGet, "/api/sessions/bad.id/layers", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDistanceThroughEvents(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp := srv.do(t, http.MethodPut, "/api/sessions/trip/tool", toolPayload{Tool: measure.ToolDistance})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[render.Status](t, resp)
	assert.Equal(t, measure.ToolDistance, st.ActiveTool)

	for _, raw := range []string{
		`{"type":"click","at":[6.9578,50.9422]}`,
		`{"type":"click","at":[7.0982,50.7374]}`,
	} {
		resp = srv.do(t, http.MethodPost, "/api/sessions/trip/events", json.RawMessage(raw))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	st = decode[render.Status](t, resp)
	require.Len(t, st.Measurements, 1)
	assert.Equal(t, measure.KindDistance, st.Measurements[0].Kind)
	assert.InDelta(t, 25000, st.Measurements[0].Value, 1500)

	resp = srv.do(t, http.MethodGet, "/api/sessions/trip/layers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	layers := decode[render.Layers](t, resp)
	assert.Len(t, layers.Measurements.Features, 1)
	assert.Len(t, layers.MeasurementPoints.Features, 2)

	id := st.Measurements[0].ID
	resp = srv.do(t, http.MethodDelete, "/api/sessions/trip/measurements/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"removed": true}, decode[map[string]bool](t, resp))
}

func TestDeleteMissingMeasurementIsNoop(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp := srv.do(t, http.MethodDelete, "/api/sessions/trip/measurements/nope", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"removed": false}, decode[map[string]bool](t, resp))

	resp = srv.do(t, http.MethodGet, "/api/sessions/trip", nil)
	assert.Empty(t, decode[session.View](t, resp).State.Measurements)
}

func TestToggleTool(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.do(t, http.MethodPut, "/api/sessions/default/tool", toolPayload{Tool: measure.ToolCircle, Toggle: true})
	resp := srv.do(t, http.MethodPut, "/api/sessions/default/tool", toolPayload{Tool: measure.ToolCircle, Toggle: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, measure.ToolNone, decode[render.Status](t, resp).ActiveTool)

	resp = srv.do(t, http.MethodPut, "/api/sessions/default/tool", toolPayload{Tool: "ruler"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBadEvent(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp := srv.do(t, http.MethodPost, "/api/sessions/default/events", json.RawMessage(`{"type":"click"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/sessions/default/events", strings.NewReader("{"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestSetView(t *testing.T) {
	srv := newTestServer(t, Options{})
	view := measure.ViewState{Center: [2]float64{7.0982, 50.7374}, Zoom: 11}
	resp := srv.do(t, http.MethodPut, "/api/sessions/default/view", view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string]any](t, resp)
	assert.Equal(t, true, out["changed"])

	resp = srv.do(t, http.MethodPut, "/api/sessions/default/view", measure.ViewState{Center: [2]float64{0, 95}, Zoom: 3})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/sessions/default", nil)
	assert.Equal(t, view, decode[session.View](t, resp).State.View)
}

func TestLocation(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp := srv.do(t, http.MethodPost, "/api/sessions/default/location", locationPayload{Error: "permission denied"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, measure.LocationUnavailable, decode[render.Status](t, resp).Location.Status)

	resp = srv.do(t, http.MethodPost, "/api/sessions/default/location", locationPayload{Sample: &measure.Fix{Lat: 50.94, Lng: 6.95, Accuracy: 12}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	loc := decode[render.Status](t, resp).Location
	assert.Equal(t, measure.LocationAvailable, loc.Status)
	require.NotNil(t, loc.Lat)
	assert.Equal(t, 50.94, *loc.Lat)

	resp = srv.do(t, http.MethodPost, "/api/sessions/default/location", locationPayload{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClearMeasurements(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.do(t, http.MethodPut, "/api/sessions/default/tool", toolPayload{Tool: measure.ToolDistance})
	for _, raw := range []string{
		`{"type":"click","at":[6.95,50.94]}`,
		`{"type":"click","at":[6.96,50.94]}`,
		`{"type":"click","at":[6.95,50.95]}`,
		`{"type":"click","at":[6.97,50.95]}`,
	} {
		srv.do(t, http.MethodPost, "/api/sessions/default/events", json.RawMessage(raw))
	}
	resp := srv.do(t, http.MethodDelete, "/api/sessions/default/measurements", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]int{"removed": 2}, decode[map[string]int](t, resp))
}

func TestWebsocketRoute(t *testing.T) {
	srv := newTestServer(t, Options{})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/live"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var out session.Outbound
	require.NoError(t, ws.ReadJSON(&out))
	assert.Equal(t, session.TypeLayers, out.Type)
	assert.Equal(t, "live", out.Session)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/sessions/no.pe", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStaticRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>map</html>"), 0o644))
	srv := newTestServer(t, Options{StaticRoot: dir})
	resp := srv.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	assert.Contains(t, body.String(), "map")
}
