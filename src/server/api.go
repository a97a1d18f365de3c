package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"market-viewer/src/connection"
	"market-viewer/src/helpers"
	"market-viewer/src/interfaces"
	"market-viewer/src/logger"
	"market-viewer/src/models"
	"market-viewer/src/series"

	"github.com/gin-gonic/gin"
)

// MarketAPI is what the HTTP layer needs from view.Market.
type MarketAPI interface {
	AddSubscription(sub models.MSubscription) error
	UpdateSubscription(id string, next models.MSubscription) error
	RemoveSubscription(id string)
	SetActive(id string) error
	SetMode(mode models.ViewMode) error
	SetResolution(secs int64) error
	ActiveID() string
	Subscriptions() []models.MSubscription
	View() models.MView
	Status() string
	State() connection.State
	Stats() map[string]series.BufferStats
}

// Runner executes fn on the goroutine that owns the market.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

const requestTimeout = 5 * time.Second

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

type APIServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	http   *http.Server

	market    MarketAPI
	runner    Runner
	directory interfaces.IInstrumentDirectory

	// WebSocket clients
	clients    map[*Client]struct{}
	connected  atomic.Int32
	broadcast  chan *models.MViewMessage
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once

	// Local cache
	latestState *models.MViewMessage
	stateMutex  sync.RWMutex
}

var _ interfaces.IDataExchanger = (*APIServer)(nil)

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, market MarketAPI, runner Runner, dir interfaces.IInstrumentDirectory, log *logger.Logger) *APIServer {
	// Set Gin mode
	if !strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &APIServer{
		Config:    cfg,
		Logger:    log,
		engine:    engine,
		market:    market,
		runner:    runner,
		directory: dir,
		clients:   make(map[*Client]struct{}),
		// Buffered channel so the event loop never waits on the hub
		broadcast:  make(chan *models.MViewMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		latestState: &models.MViewMessage{
			Type: "INITIAL",
			View: models.MView{
				Mode:              models.ModeCandles,
				AggregatedCandles: []models.MCandle{},
				AggregatedQuotes:  []models.MQuotePoint{},
			},
		},
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/status", s.getStatus)
	api.GET("/view", s.getView)
	api.PUT("/view", s.putView)
	api.GET("/subscriptions", s.listSubscriptions)
	api.POST("/subscriptions", s.createSubscription)
	api.PUT("/subscriptions/:id", s.updateSubscription)
	api.DELETE("/subscriptions/:id", s.deleteSubscription)
	api.GET("/instruments", s.listInstruments)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for httptest.
func (s *APIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and blocks serving HTTP until Stop.
func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.http = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	go s.handleWebsockets()

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return helpers.NewTransportError("http server", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// RunHub starts only the websocket hub, for tests that serve Handler() through
// httptest instead of calling Start.
func (s *APIServer) RunHub() {
	go s.handleWebsockets()
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

// onLoop runs fn on the market's event loop, bounded by the request context.
func (s *APIServer) onLoop(c *gin.Context, fn func()) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	if err := s.runner.Do(ctx, fn); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	timestamp := s.latestState.Timestamp
	s.stateMutex.RUnlock()

	var state string
	if !s.onLoop(c, func() { state = s.market.State().String() }) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"feed":          state,
		"connections":   s.connected.Load(),
		"latest_update": timestamp,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getStatus(c *gin.Context) {
	var body gin.H
	ok := s.onLoop(c, func() {
		body = gin.H{
			"status":        s.market.Status(),
			"state":         s.market.State().String(),
			"activeId":      s.market.ActiveID(),
			"subscriptions": len(s.market.Subscriptions()),
			"buffers":       s.market.Stats(),
		}
	})
	if ok {
		c.JSON(http.StatusOK, body)
	}
}

// -----------------------------------------------------------------------------

func (s *APIServer) getView(c *gin.Context) {
	var v models.MView
	if s.onLoop(c, func() { v = s.market.View() }) {
		c.JSON(http.StatusOK, v)
	}
}

// -----------------------------------------------------------------------------

type viewRequest struct {
	ActiveID       *string          `json:"activeId"`
	Mode           *models.ViewMode `json:"mode"`
	ResolutionSecs *int64           `json:"resolutionSecs"`
}

func (s *APIServer) putView(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var v models.MView
	var err error
	ok := s.onLoop(c, func() {
		if req.ActiveID != nil {
			if err = s.market.SetActive(*req.ActiveID); err != nil {
				return
			}
		}
		if req.Mode != nil {
			if err = s.market.SetMode(*req.Mode); err != nil {
				return
			}
		}
		if req.ResolutionSecs != nil {
			if err = s.market.SetResolution(*req.ResolutionSecs); err != nil {
				return
			}
		}
		v = s.market.View()
	})
	if !ok {
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// -----------------------------------------------------------------------------

func (s *APIServer) listSubscriptions(c *gin.Context) {
	var subs []models.MSubscription
	if s.onLoop(c, func() { subs = s.market.Subscriptions() }) {
		c.JSON(http.StatusOK, subs)
	}
}

// -----------------------------------------------------------------------------

// subscriptionRequest accepts either an explicit key or a directory label.
type subscriptionRequest struct {
	ID         string                 `json:"id"`
	Key        *models.MInstrumentKey `json:"key"`
	Label      string                 `json:"label"`
	WindowSecs int64                  `json:"windowSecs"`
}

func (s *APIServer) resolveRequest(req subscriptionRequest) (models.MSubscription, error) {
	sub := models.MSubscription{ID: req.ID, WindowSecs: req.WindowSecs}
	switch {
	case req.Key != nil:
		sub.Key = *req.Key
	case req.Label != "":
		asset, ok := s.directory.FindByLabel(req.Label)
		if !ok {
			return sub, helpers.NewValidationError(fmt.Sprintf("unknown instrument label '%s'", req.Label))
		}
		sub.Key = asset.Key()
	default:
		return sub, helpers.NewValidationError("either key or label is required")
	}
	return sub, nil
}

func (s *APIServer) createSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := s.resolveRequest(req)
	if err != nil {
		writeError(c, err)
		return
	}

	var created models.MSubscription
	ok := s.onLoop(c, func() {
		if err = s.market.AddSubscription(sub); err != nil {
			return
		}
		subs := s.market.Subscriptions()
		created = subs[len(subs)-1]
	})
	if !ok {
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// -----------------------------------------------------------------------------

func (s *APIServer) updateSubscription(c *gin.Context) {
	id := c.Param("id")
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ID = id

	// Without key or label only the window changes.
	keepKey := req.Key == nil && req.Label == ""
	var next models.MSubscription
	var err error
	if !keepKey {
		if next, err = s.resolveRequest(req); err != nil {
			writeError(c, err)
			return
		}
	}

	found := false
	var updated models.MSubscription
	ok := s.onLoop(c, func() {
		var cur models.MSubscription
		cur, found = findSubscription(s.market.Subscriptions(), id)
		if !found {
			return
		}
		if keepKey {
			next = models.MSubscription{ID: id, Key: cur.Key, WindowSecs: req.WindowSecs}
		}
		if err = s.market.UpdateSubscription(id, next); err != nil {
			return
		}
		for _, sub := range s.market.Subscriptions() {
			if sub.ID == id {
				updated = sub
			}
		}
	})
	if !ok {
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// -----------------------------------------------------------------------------

func (s *APIServer) deleteSubscription(c *gin.Context) {
	id := c.Param("id")
	found := false
	ok := s.onLoop(c, func() {
		found = hasSubscription(s.market.Subscriptions(), id)
		s.market.RemoveSubscription(id)
	})
	if !ok {
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// -----------------------------------------------------------------------------

func (s *APIServer) listInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, s.directory.All())
}
