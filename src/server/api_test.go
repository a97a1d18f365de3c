package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"market-viewer/src/connection"
	"market-viewer/src/directory"
	"market-viewer/src/interfaces"
	"market-viewer/src/models"
	"market-viewer/src/series"
	"market-viewer/src/testutil"
	"market-viewer/src/view"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedRunner serializes handler calls the way the event loop does.
type lockedRunner struct {
	mu  sync.Mutex
	err error
}

func (r *lockedRunner) Do(ctx context.Context, fn func()) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
	return nil
}

type fixture struct {
	server *APIServer
	market *view.Market
	runner *lockedRunner
	dialer *testutil.FakeDialer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{runner: &lockedRunner{}, dialer: &testutil.FakeDialer{}}
	sched := testutil.NewManualScheduler()
	dir := directory.NewDefault()
	f.market = view.NewMarket(
		view.Options{Limits: series.Limits{DefaultWindow: 3600}, DefaultResolution: 60},
		dir, nil,
		func(h interfaces.IFeedHandler) view.Connection {
			return connection.NewManager(connection.Options{URL: "ws://feed/quotes"}, f.dialer, sched, h, nil)
		},
		nil,
	)
	cfg := &models.MConfig{LogLevel: "info"}
	f.server = NewAPIServer(cfg, f.market, f.runner, dir, nil)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

// -----------------------------------------------------------------------------

func TestHealthReportsFeedState(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "disconnected", body["feed"])
}

func TestCreateSubscriptionByLabel(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/subscriptions", `{"id":"a","label":"DAX"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sub models.MSubscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, "a", sub.ID)
	assert.Equal(t, "22", sub.Key.VenueID)
	assert.Equal(t, "133962", sub.Key.SymbolID)
	assert.EqualValues(t, 3600, sub.WindowSecs)
	assert.Equal(t, "a", f.market.ActiveID())
	assert.Equal(t, 1, f.dialer.Dials())
}

func TestCreateSubscriptionValidation(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/subscriptions", `{"id":"a","label":"NOPE"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/subscriptions", `{"id":"a"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/subscriptions", `{"label":"DAX"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/subscriptions", `not json`).Code)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/subscriptions",
		`{"id":"a","key":{"venueId":"98","symbolId":"133979","channel":"bid"}}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/subscriptions", `{"id":"a","label":"DAX"}`).Code)
}

func TestUpdateAndDeleteSubscription(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/subscriptions", `{"id":"a","label":"DAX"}`).Code)

	rec := f.do(t, http.MethodPut, "/api/subscriptions/a", `{"label":"GOLD","windowSecs":600}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sub models.MSubscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, "133979", sub.Key.SymbolID)
	assert.EqualValues(t, 600, sub.WindowSecs)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPut, "/api/subscriptions/zzz", `{"label":"DAX"}`).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/subscriptions/a", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/subscriptions/a", "").Code)

	rec = f.do(t, http.MethodGet, "/api/subscriptions", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestPutViewChangesSelection(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/subscriptions", `{"id":"a","label":"DAX"}`).Code)

	rec := f.do(t, http.MethodPut, "/api/view", `{"mode":"quote","resolutionSecs":300}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v models.MView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, models.ModeQuote, v.Mode)
	assert.EqualValues(t, 300, v.ResolutionSecs)
	assert.Equal(t, "DAX", v.Label)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/view", `{"mode":"bars"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/view", `{"resolutionSecs":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/view", `{"activeId":"ghost"}`).Code)
}

func TestInstrumentsListsDirectory(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/instruments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var assets []models.MAsset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assets))
	assert.Len(t, assets, len(directory.DefaultAssets))
}

func TestStoppedLoopIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.runner.err = errors.New("event loop stopped")
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/status", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/view", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/view", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

// -----------------------------------------------------------------------------

func TestWebsocketReceivesInitialThenUpdates(t *testing.T) {
	f := newFixture(t)
	f.server.RunHub()
	t.Cleanup(func() { f.server.Stop() })

	srv := httptest.NewServer(f.server.Handler())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var msg models.MViewMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "INITIAL", msg.Type)

	f.server.Broadcast(&models.MViewMessage{Status: "Verbunden", State: "connected", Timestamp: 42})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "UPDATE", msg.Type)
	assert.Equal(t, "Verbunden", msg.Status)
	assert.EqualValues(t, 42, msg.Timestamp)

	assert.Eventually(t, func() bool { return f.server.LatestState().Timestamp == 42 }, time.Second, 10*time.Millisecond)
}

func TestBroadcastIgnoresForeignPayloads(t *testing.T) {
	f := newFixture(t)
	f.server.Broadcast("not a view")
	assert.Equal(t, "INITIAL", f.server.LatestState().Type)
}

func TestUpdateWindowOnlyKeepsInstrument(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/subscriptions", `{"id":"a","label":"DAX"}`).Code)

	rec := f.do(t, http.MethodPut, "/api/subscriptions/a", `{"windowSecs":900}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sub models.MSubscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, "133962", sub.Key.SymbolID)
	assert.EqualValues(t, 900, sub.WindowSecs)
}
