package connection

import (
	"time"

	"market-viewer/src/helpers"
	"market-viewer/src/interfaces"
	"market-viewer/src/logger"
	"market-viewer/src/models"
)

// -----------------------------------------------------------------------------

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// User visible status lines.
const (
	StatusConnecting   = "Verbinde…"
	StatusConnected    = "Verbunden"
	StatusReconnecting = "Reconnect…"
	StatusErrorPrefix  = "Fehler: "
)

const (
	DefaultHeartbeat      = 15 * time.Second
	DefaultReconnectDelay = 1500 * time.Millisecond
)

// -----------------------------------------------------------------------------

type Options struct {
	URL            string
	Heartbeat      time.Duration
	ReconnectDelay time.Duration
}

// -----------------------------------------------------------------------------
// Manager multiplexes subscriptions over one transport, replays them after
// every reconnect and routes inbound frames to subscription ids.
//
// A Manager is not safe for concurrent use. Every method and every transport
// callback must run on the same event loop (see utils.EventLoop).
// -----------------------------------------------------------------------------

type Manager struct {
	opts     Options
	dialer   interfaces.IDialer
	sched    interfaces.IScheduler
	handler  interfaces.IFeedHandler
	log      *logger.Logger
	errs     *helpers.ErrorHandler
	registry *Registry

	state     State
	status    string
	transport interfaces.ITransport
	gen       uint64

	heartbeatTimer interfaces.ITimer
	reconnectTimer interfaces.ITimer
}

// -----------------------------------------------------------------------------

func NewManager(opts Options, dialer interfaces.IDialer, sched interfaces.IScheduler, handler interfaces.IFeedHandler, log *logger.Logger) *Manager {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		opts:     opts,
		dialer:   dialer,
		sched:    sched,
		handler:  handler,
		log:      log,
		errs:     helpers.NewErrorHandler(log),
		registry: NewRegistry(),
		state:    Disconnected,
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Connect opens the transport unless a connection is already up or underway.
func (m *Manager) Connect() {
	if m.state == Connecting || m.state == Connected {
		return
	}
	m.cancelReconnect()

	m.gen++
	m.state = Connecting
	m.setStatus(StatusConnecting)

	l := &listener{m: m, gen: m.gen}
	t, err := m.dialer.Dial(m.opts.URL, l)
	if err != nil {
		m.log.Warning("dial %s failed: %v", m.opts.URL, err)
		m.onDown(l.gen)
		return
	}
	if l.gen == m.gen {
		m.transport = t
	} else if t != nil {
		// the dialer reported the outcome synchronously and it was a failure
		_ = t.Close()
	}
}

// -----------------------------------------------------------------------------

// Close cancels both timers and tears the transport down. Nothing reconnects
// until Connect is called again.
func (m *Manager) Close() {
	m.cancelHeartbeat()
	m.cancelReconnect()
	m.gen++
	if m.transport != nil {
		if err := m.transport.Close(); err != nil {
			m.log.Debug("close transport: %v", err)
		}
		m.transport = nil
	}
	m.state = Disconnected
}

// -----------------------------------------------------------------------------

func (m *Manager) onOpen(gen uint64) {
	if gen != m.gen {
		return
	}
	m.state = Connected
	m.setStatus(StatusConnected)
	m.log.Info("connected to %s, replaying %d subscriptions", m.opts.URL, m.registry.Len())

	for _, sub := range m.registry.All() {
		m.sendSubscribe(sub)
	}

	m.cancelHeartbeat()
	m.heartbeatTimer = m.sched.Every(m.opts.Heartbeat, func() {
		m.send(pingFrame)
	})
}

// -----------------------------------------------------------------------------

// onDown handles both close and error. Later events from the same transport
// are ignored because the generation moves on.
func (m *Manager) onDown(gen uint64) {
	if gen != m.gen {
		return
	}
	m.gen++
	m.cancelHeartbeat()
	if m.transport != nil {
		_ = m.transport.Close()
		m.transport = nil
	}
	m.state = Reconnecting
	m.setStatus(StatusReconnecting)

	m.cancelReconnect()
	m.reconnectTimer = m.sched.After(m.opts.ReconnectDelay, func() {
		m.reconnectTimer = nil
		m.Connect()
	})
}

// -----------------------------------------------------------------------------

func (m *Manager) cancelHeartbeat() {
	if m.heartbeatTimer != nil {
		m.heartbeatTimer.Stop()
		m.heartbeatTimer = nil
	}
}

func (m *Manager) cancelReconnect() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// -----------------------------------------------------------------------------
// Subscription registry
// -----------------------------------------------------------------------------

// Add registers sub, ensures the connection and subscribes it.
func (m *Manager) Add(sub models.MSubscription) {
	m.registry.Set(sub)
	m.Connect()
	m.sendSubscribe(sub)
}

// -----------------------------------------------------------------------------

// Update rebinds sub. When its instrument changed the old key is unsubscribed
// and dropped first. An id not yet known is registered like Add.
func (m *Manager) Update(sub models.MSubscription) {
	if prev, ok := m.registry.FindByID(sub.ID); ok && !prev.Key.Equal(sub.Key) {
		m.sendUnsubscribe(prev.Key)
		m.registry.Delete(prev.Key.Canonical())
	}
	m.registry.Set(sub)
	m.Connect()
	m.sendSubscribe(sub)
}

// -----------------------------------------------------------------------------

// Rebind points an already subscribed instrument at another subscription.
func (m *Manager) Rebind(sub models.MSubscription) {
	m.registry.Set(sub)
	m.Connect()
	m.sendSubscribe(sub)
}

// -----------------------------------------------------------------------------

// Remove unsubscribes sub's instrument. The transport is closed once the
// registry is empty. Unknown keys are ignored.
func (m *Manager) Remove(sub models.MSubscription) {
	if !m.registry.Delete(sub.Key.Canonical()) {
		return
	}
	m.sendUnsubscribe(sub.Key)
	if m.registry.Len() == 0 {
		m.Close()
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) State() State {
	return m.state
}

func (m *Manager) Status() string {
	return m.status
}

// Subscriptions returns the registry in registration order.
func (m *Manager) Subscriptions() []models.MSubscription {
	return m.registry.All()
}

// -----------------------------------------------------------------------------
// Outbound
// -----------------------------------------------------------------------------

func (m *Manager) sendSubscribe(sub models.MSubscription) {
	data, err := encodeSubscribe(sub)
	if err != nil {
		m.log.Error("encode subscribe: %v", err)
		return
	}
	m.send(data)
}

func (m *Manager) sendUnsubscribe(key models.MInstrumentKey) {
	data, err := encodeUnsubscribe(key)
	if err != nil {
		m.log.Error("encode unsubscribe: %v", err)
		return
	}
	m.send(data)
}

// send writes only on an open transport. Subscribes skipped here are replayed on open.
func (m *Manager) send(data []byte) {
	if m.state != Connected || m.transport == nil {
		return
	}
	if err := m.transport.Send(data); err != nil {
		m.log.Debug("send dropped: %v", err)
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) setStatus(status string) {
	m.status = status
	if m.handler != nil {
		m.handler.HandleStatus(status)
	}
}

// -----------------------------------------------------------------------------
// Inbound routing
// -----------------------------------------------------------------------------

// HandleMessage routes one inbound frame. Malformed or unroutable frames are
// dropped; a panic while handling one frame never affects the next.
func (m *Manager) HandleMessage(data []byte) {
	defer m.errs.Recover("frame")

	if isBareArray(data) {
		sub, ok := m.registry.Only()
		if !ok {
			m.log.Debug("bare candle array dropped, %d subscriptions registered", m.registry.Len())
			return
		}
		candles, err := decodeList[models.MCandle](data)
		if err != nil {
			m.log.Debug("bare candle array: %v", err)
			return
		}
		m.handler.HandleCandles(sub.ID, candles)
		return
	}

	frame, err := decodeFrame(data)
	if err != nil {
		m.log.Debug("drop frame: %v", err)
		return
	}

	switch frame.Type {
	case models.FrameError:
		m.errs.Handle(helpers.NewServerError(frame.Message), "feed")
		m.setStatus(StatusErrorPrefix + frame.Message)
		return
	case models.FramePong:
		return
	}

	sub, ok := m.target(frame)
	if !ok {
		return
	}

	switch frame.Type {
	case models.FrameCandles, models.FrameCandle:
		candles, err := decodeList[models.MCandle](frame.Data)
		if err != nil {
			m.log.Debug("drop %s frame: %v", frame.Type, err)
			return
		}
		m.handler.HandleCandles(sub.ID, candles)
	case models.FrameQuotes, models.FrameQuote:
		quotes, err := decodeList[models.MQuote](frame.Data)
		if err != nil {
			m.log.Debug("drop %s frame: %v", frame.Type, err)
			return
		}
		m.handler.HandleQuotes(sub.ID, quotes)
	default:
		m.log.Debug("unknown frame type %q", frame.Type)
	}
}

// target resolves the subscription a frame belongs to. Frames without a key
// are only deliverable while exactly one subscription exists, as the wire
// carries no correlation id.
func (m *Manager) target(frame models.MInboundFrame) (models.MSubscription, bool) {
	if frame.Key != nil {
		return m.registry.Get(frame.Key.Canonical())
	}
	return m.registry.Only()
}

// -----------------------------------------------------------------------------
// listener ties transport callbacks to the connection attempt that created them.
// -----------------------------------------------------------------------------

type listener struct {
	m   *Manager
	gen uint64
}

func (l *listener) OnOpen() { l.m.onOpen(l.gen) }

func (l *listener) OnMessage(data []byte) {
	if l.gen != l.m.gen {
		return
	}
	l.m.HandleMessage(data)
}

func (l *listener) OnError(err error) {
	if l.gen == l.m.gen {
		l.m.log.Warning("transport error: %v", err)
	}
	l.m.onDown(l.gen)
}

func (l *listener) OnClose() { l.m.onDown(l.gen) }
