package simulator

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"market-viewer/src/connection"
	"market-viewer/src/models"
	"market-viewer/src/network"
	"market-viewer/src/testutil"
	"market-viewer/src/utils"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	feed := NewFeed([]models.MAsset{{Label: "DAX", VenueID: "22", SymbolID: "133962"}}, 1)
	now := t0
	s := NewServer(feed, time.Second, nil)
	s.Now = func() time.Time { return now }
	for i := 0; i < 3; i++ {
		now = t0.Add(time.Duration(i) * time.Minute)
		feed.Step(now)
	}

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http") + "/quotes"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) models.MInboundFrame {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f models.MInboundFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

// -----------------------------------------------------------------------------

func TestPingIsAnsweredWithPong(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, models.FramePong, readFrame(t, conn).Type)
}

func TestInvalidFramesGetErrorFrames(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	f := readFrame(t, conn)
	assert.Equal(t, models.FrameError, f.Type)
	assert.True(t, strings.HasPrefix(f.Message, "Ungültige Nachricht"))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"subscribe","venueId":"22"}`)))
	assert.Equal(t, models.FrameError, readFrame(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"dance"}`)))
	assert.Equal(t, models.FrameError, readFrame(t, conn).Type)
}

func TestSubscribeSendsSnapshotsThenLiveFrames(t *testing.T) {
	s, url := startServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(models.NewSubscribeCommand(models.MSubscription{ID: "a", Key: daxKey()})))

	candles := readFrame(t, conn)
	assert.Equal(t, models.FrameCandles, candles.Type)
	require.NotNil(t, candles.Key)
	assert.Equal(t, "22:133962:last", candles.Key.Canonical())
	var list []models.MCandle
	require.NoError(t, json.Unmarshal(candles.Data, &list))
	assert.Len(t, list, 3)

	quotes := readFrame(t, conn)
	assert.Equal(t, models.FrameQuotes, quotes.Type)

	require.Eventually(t, func() bool { return s.SessionCount() == 1 }, time.Second, 10*time.Millisecond)
	s.Tick()
	assert.Equal(t, models.FrameQuote, readFrame(t, conn).Type)
	assert.Equal(t, models.FrameCandle, readFrame(t, conn).Type)
}

func TestUnsubscribeStopsLiveFrames(t *testing.T) {
	s, url := startServer(t)
	conn := dial(t, url)

	sub := models.MSubscription{ID: "a", Key: daxKey()}
	require.NoError(t, conn.WriteJSON(models.NewSubscribeCommand(sub)))
	readFrame(t, conn)
	readFrame(t, conn)
	require.NoError(t, conn.WriteJSON(models.NewUnsubscribeCommand(sub.Key)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	require.Equal(t, models.FramePong, readFrame(t, conn).Type)

	s.Tick()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, models.FramePong, readFrame(t, conn).Type)
}

// -----------------------------------------------------------------------------

func TestManagerStreamsFromSimulator(t *testing.T) {
	s, url := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := utils.NewEventLoop(0)
	go loop.Run(ctx)

	handler := testutil.NewRecordingHandler()
	dialer := &network.WebsocketDialer{Post: loop.Post, HandshakeTimeout: time.Second}
	var mgr *connection.Manager
	require.NoError(t, loop.Do(ctx, func() {
		mgr = connection.NewManager(connection.Options{URL: url}, dialer, loop, handler, nil)
		mgr.Add(models.MSubscription{ID: "a", Key: daxKey(), WindowSecs: 3600})
	}))

	onLoop := func(fn func() bool) func() bool {
		return func() bool {
			var ok bool
			loop.Do(ctx, func() { ok = fn() })
			return ok
		}
	}

	require.Eventually(t, onLoop(func() bool {
		return len(handler.Candles["a"]) == 1 && len(handler.Quotes["a"]) == 1
	}), 3*time.Second, 20*time.Millisecond)
	assert.Eventually(t, onLoop(func() bool { return mgr.State() == connection.Connected }), time.Second, 10*time.Millisecond)

	s.Tick()
	require.Eventually(t, onLoop(func() bool {
		return len(handler.Candles["a"]) == 2 && len(handler.Quotes["a"]) == 2
	}), 3*time.Second, 20*time.Millisecond)

	require.NoError(t, loop.Do(ctx, mgr.Close))
}
