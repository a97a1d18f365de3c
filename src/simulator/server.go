package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"market-viewer/src/helpers"
	"market-viewer/src/logger"
	"market-viewer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	defaultWindowSecs = 3600
	writeWait         = 2 * time.Second
	sessionQueue      = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server speaks the feed protocol on /quotes.
type Server struct {
	Feed     *Feed
	Logger   *logger.Logger
	Interval time.Duration
	Now      func() time.Time

	engine *gin.Engine
	http   *http.Server

	mu       sync.Mutex
	sessions map[*session]struct{}
}

type session struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	subs map[string]struct{}
}

func (s *session) subscribed(key models.MInstrumentKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[key.Canonical()]
	return ok
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}

// -----------------------------------------------------------------------------

func NewServer(feed *Feed, interval time.Duration, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	if log == nil {
		log = logger.NewNopLogger()
	}
	if interval <= 0 {
		interval = time.Second
	}
	s := &Server{
		Feed:     feed,
		Logger:   log,
		Interval: interval,
		Now:      time.Now,
		engine:   gin.New(),
		sessions: make(map[*session]struct{}),
	}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/quotes", s.handleQuotes)
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.SessionCount()})
	})
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SessionCount reports connected feed clients.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start serves on addr and ticks the feed until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	go s.Run(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		s.http.Shutdown(shutdownCtx)
	}()

	s.Logger.Info("Feed simulator listening on %s", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return helpers.NewTransportError("feed simulator", err)
	}
	return nil
}

// Run steps the feed every Interval until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick advances the simulation once and pushes quote and candle frames to
// every session subscribed to the moved instruments.
func (s *Server) Tick() {
	ticks := s.Feed.Step(s.Now())

	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, t := range ticks {
		key := t.Key
		var quote, candle []byte
		for _, sess := range sessions {
			if !sess.subscribed(key) {
				continue
			}
			if quote == nil {
				quote = s.encode(models.MOutboundFrame{Type: models.FrameQuote, Key: &key, Data: t.Quote})
				candle = s.encode(models.MOutboundFrame{Type: models.FrameCandle, Key: &key, Data: t.Candle})
			}
			s.deliver(sess, quote)
			s.deliver(sess, candle)
		}
	}
}

// -----------------------------------------------------------------------------
// Sessions
// -----------------------------------------------------------------------------

func (s *Server) handleQuotes(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warning("feed upgrade failed: %v", err)
		return
	}
	sess := &session{
		conn: conn,
		send: make(chan []byte, sessionQueue),
		done: make(chan struct{}),
		subs: make(map[string]struct{}),
	}

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	s.Logger.Info("feed session opened from %s", c.ClientIP())

	go s.writePump(sess)
	s.readPump(sess)

	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	sess.close()
	conn.Close()
	s.Logger.Info("feed session closed")
}

func (s *Server) readPump(sess *session) {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(sess, data)
	}
}

func (s *Server) writePump(sess *session) {
	for {
		select {
		case <-sess.done:
			return
		case data := <-sess.send:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				sess.close()
				sess.conn.Close()
				return
			}
		}
	}
}

func (s *Server) deliver(sess *session, data []byte) {
	select {
	case sess.send <- data:
	case <-sess.done:
	default:
		s.Logger.Debug("feed session queue full, dropping frame")
	}
}

func (s *Server) encode(frame interface{}) []byte {
	data, err := json.Marshal(frame)
	if err != nil {
		s.Logger.Error("encode frame: %v", err)
		return nil
	}
	return data
}

func (s *Server) reply(sess *session, frame interface{}) {
	if data := s.encode(frame); data != nil {
		s.deliver(sess, data)
	}
}

func (s *Server) replyError(sess *session, msg string) {
	s.reply(sess, models.MOutboundFrame{Type: models.FrameError, Message: msg})
}

// -----------------------------------------------------------------------------
// Protocol
// -----------------------------------------------------------------------------

func (s *Server) handleMessage(sess *session, data []byte) {
	var msg models.MControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.replyError(sess, "Ungültige Nachricht: "+err.Error())
		return
	}

	if msg.Type == models.FramePing {
		s.reply(sess, models.MPingCommand{Type: models.FramePong})
		return
	}

	switch msg.Action {
	case models.ActionSubscribe:
		s.subscribe(sess, msg)
	case models.ActionUnsubscribe:
		s.unsubscribe(sess, msg)
	default:
		s.replyError(sess, fmt.Sprintf("Ungültige Nachricht: unbekannte Aktion '%s'", msg.Action))
	}
}

func keyOf(msg models.MControlMessage) (models.MInstrumentKey, bool) {
	if msg.VenueID == "" || msg.SymbolID == "" {
		return models.MInstrumentKey{}, false
	}
	key := models.MInstrumentKey{VenueID: msg.VenueID, SymbolID: msg.SymbolID, Channel: msg.Channel}
	key.Channel = key.ChannelOrDefault()
	return key, true
}

func (s *Server) subscribe(sess *session, msg models.MControlMessage) {
	key, ok := keyOf(msg)
	if !ok {
		s.replyError(sess, "Ungültige Nachricht: venueId und symbolId erforderlich")
		return
	}
	window := int64(defaultWindowSecs)
	if msg.Window != nil && *msg.Window > 0 {
		window = *msg.Window
	}

	s.Feed.Track(key)
	sess.mu.Lock()
	sess.subs[key.Canonical()] = struct{}{}
	sess.mu.Unlock()
	s.Logger.Debug("subscribe %s window=%ds", key.Canonical(), window)

	candles, quotes := s.Feed.Snapshot(key, time.Duration(window)*time.Second, s.Now())
	s.reply(sess, models.MOutboundFrame{Type: models.FrameCandles, Key: &key, Data: candles})
	s.reply(sess, models.MOutboundFrame{Type: models.FrameQuotes, Key: &key, Data: quotes})
}

func (s *Server) unsubscribe(sess *session, msg models.MControlMessage) {
	key, ok := keyOf(msg)
	if !ok {
		s.replyError(sess, "Ungültige Nachricht: venueId und symbolId erforderlich")
		return
	}
	sess.mu.Lock()
	delete(sess.subs, key.Canonical())
	sess.mu.Unlock()
	s.Logger.Debug("unsubscribe %s", key.Canonical())
}
