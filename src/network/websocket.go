package network

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"market-viewer/src/helpers"
	"market-viewer/src/interfaces"
	"market-viewer/src/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait               = 2 * time.Second
	maxMessageSize          = 1024 * 1024 // 1MB
	defaultHandshakeTimeout = 10 * time.Second
	defaultSendQueue        = 256
)

// -----------------------------------------------------------------------------
// WebsocketDialer opens gorilla websocket transports. Every listener callback
// is handed to Post, normally the owning event loop.
// -----------------------------------------------------------------------------

type WebsocketDialer struct {
	Post             func(func())
	HandshakeTimeout time.Duration
	SendQueue        int
	TLSInsecureSkip  bool
	Logger           *logger.Logger
}

var _ interfaces.IDialer = (*WebsocketDialer)(nil)

// -----------------------------------------------------------------------------

// Dial validates the URL and connects in the background.
func (d *WebsocketDialer) Dial(rawURL string, listener interfaces.ITransportListener) (interfaces.ITransport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, helpers.NewTransportError("invalid feed url", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, helpers.NewTransportError("feed url must use ws or wss: "+rawURL, nil)
	}

	log := d.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	queue := d.SendQueue
	if queue <= 0 {
		queue = defaultSendQueue
	}
	handshake := d.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}
	post := d.Post
	if post == nil {
		post = func(fn func()) { fn() }
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &WebsocketTransport{
		url:      rawURL,
		listener: listener,
		post:     post,
		log:      log,
		send:     make(chan []byte, queue),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: d.TLSInsecureSkip},
		HandshakeTimeout: handshake,
	}
	go t.run(dialer)
	return t, nil
}

// -----------------------------------------------------------------------------
// WebsocketTransport is one connection. It reports exactly one terminal event:
// OnClose for a normal or locally requested close, OnError otherwise.
// -----------------------------------------------------------------------------

type WebsocketTransport struct {
	url      string
	listener interfaces.ITransportListener
	post     func(func())
	log      *logger.Logger

	conn   atomic.Pointer[websocket.Conn]
	open   atomic.Bool
	closed atomic.Bool
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
}

var _ interfaces.ITransport = (*WebsocketTransport)(nil)

// -----------------------------------------------------------------------------

func (t *WebsocketTransport) run(dialer websocket.Dialer) {
	conn, resp, err := dialer.DialContext(t.ctx, t.url, make(http.Header))
	if err != nil {
		if t.closed.Load() {
			t.finish(nil)
			return
		}
		if resp != nil {
			t.log.Warning("dial %s failed with status %s: %v", t.url, resp.Status, err)
		}
		t.finish(helpers.NewTransportError("dial "+t.url, err))
		return
	}
	t.conn.Store(conn)
	if t.closed.Load() {
		// Close raced the handshake
		conn.Close()
		t.finish(nil)
		return
	}

	conn.SetReadLimit(maxMessageSize)
	t.open.Store(true)
	t.post(t.listener.OnOpen)

	go t.writePump(conn)
	t.readPump(conn)
}

// -----------------------------------------------------------------------------
// readPump delivers frames until the socket fails
// -----------------------------------------------------------------------------

func (t *WebsocketTransport) readPump(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.open.Store(false)
			if t.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.finish(nil)
			} else {
				t.finish(helpers.NewTransportError("read", err))
			}
			return
		}
		t.post(func() { t.listener.OnMessage(message) })
	}
}

// -----------------------------------------------------------------------------
// writePump serializes writes, gorilla allows only one concurrent writer
// -----------------------------------------------------------------------------

func (t *WebsocketTransport) writePump(conn *websocket.Conn) {
	for {
		select {
		case <-t.done:
			return
		case message := <-t.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				t.log.Warning("write to %s failed: %v", t.url, err)
				// the read side notices and reports the failure
				conn.Close()
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (t *WebsocketTransport) finish(err error) {
	t.once.Do(func() {
		close(t.done)
		if err != nil {
			t.post(func() { t.listener.OnError(err) })
			return
		}
		t.post(t.listener.OnClose)
	})
}

// -----------------------------------------------------------------------------

// Send queues a text frame for the write pump.
func (t *WebsocketTransport) Send(data []byte) error {
	if !t.open.Load() || t.closed.Load() {
		return helpers.ErrNotConnected
	}
	select {
	case t.send <- data:
		return nil
	default:
		return helpers.ErrSendQueueFull
	}
}

// -----------------------------------------------------------------------------

// Close sends a close frame and tears the socket down.
func (t *WebsocketTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.open.Store(false)
	t.cancel()

	conn := t.conn.Load()
	if conn == nil {
		return nil
	}
	if err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	); err != nil {
		t.log.Debug("failed to send close frame: %v", err)
	}
	return conn.Close()
}
