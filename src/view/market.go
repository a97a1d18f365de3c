package view

import (
	"fmt"
	"slices"

	"market-viewer/src/connection"
	"market-viewer/src/helpers"
	"market-viewer/src/interfaces"
	"market-viewer/src/logger"
	"market-viewer/src/models"
	"market-viewer/src/series"
)

// Connection is the part of connection.Manager the market drives.
type Connection interface {
	Add(sub models.MSubscription)
	Update(sub models.MSubscription)
	Remove(sub models.MSubscription)
	Rebind(sub models.MSubscription)
	Close()
	State() connection.State
	Status() string
	Subscriptions() []models.MSubscription
}

// SessionLookup reports whether the exchange behind a MIC is in session.
type SessionLookup interface {
	IsOpen(mic string) *bool
}

type Options struct {
	Limits            series.Limits
	DefaultResolution int64
}

// -----------------------------------------------------------------------------
// Market ties subscriptions, series buffers, view selection and the feed
// connection together. It must only be used from the event loop that also
// drives the connection.
// -----------------------------------------------------------------------------

type Market struct {
	subs      []models.MSubscription
	selection *Selection
	store     *series.Store
	dir       interfaces.IInstrumentDirectory
	sessions  SessionLookup
	conn      Connection
	log       *logger.Logger
	status    string
	listeners []func()
	window    int64
}

// -----------------------------------------------------------------------------

// NewMarket builds a market whose connection is created by newConn, with the
// market itself as the feed handler.
func NewMarket(opts Options, dir interfaces.IInstrumentDirectory, sessions SessionLookup, newConn func(interfaces.IFeedHandler) Connection, log *logger.Logger) *Market {
	if log == nil {
		log = logger.NewNopLogger()
	}
	m := &Market{
		selection: NewSelection(opts.DefaultResolution),
		dir:       dir,
		sessions:  sessions,
		log:       log,
	}
	m.store = series.NewStore(opts.Limits, m, log.With("SeriesStore"))
	m.window = opts.Limits.DefaultWindow
	if m.window <= 0 {
		m.window = series.DefaultWindowSecs
	}
	m.conn = newConn(m)
	return m
}

// -----------------------------------------------------------------------------

// OnChange registers fn to run after every buffer or selection change.
func (m *Market) OnChange(fn func()) {
	m.listeners = append(m.listeners, fn)
}

func (m *Market) notify() {
	for _, fn := range m.listeners {
		fn()
	}
}

// -----------------------------------------------------------------------------
// Feed handler
// -----------------------------------------------------------------------------

func (m *Market) HandleCandles(subID string, candles []models.MCandle) {
	if m.indexOf(subID) < 0 {
		return
	}
	m.store.UpsertCandles(subID, candles)
	m.notify()
}

func (m *Market) HandleQuotes(subID string, quotes []models.MQuote) {
	if m.indexOf(subID) < 0 {
		return
	}
	m.store.UpsertQuotes(subID, quotes)
	m.notify()
}

func (m *Market) HandleStatus(status string) {
	m.status = status
	m.notify()
}

// WindowFor feeds the store the retention window of a subscription.
func (m *Market) WindowFor(subID string) (int64, bool) {
	if i := m.indexOf(subID); i >= 0 {
		return m.subs[i].WindowSecs, true
	}
	return 0, false
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

func (m *Market) indexOf(id string) int {
	for i, s := range m.subs {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// sharing returns another subscription on the same instrument, if any.
func (m *Market) sharing(key models.MInstrumentKey, exceptID string) (models.MSubscription, bool) {
	for _, s := range m.subs {
		if s.ID != exceptID && s.Key.Equal(key) {
			return s, true
		}
	}
	return models.MSubscription{}, false
}

// boundTo reports whether the connection currently routes key to id.
func (m *Market) boundTo(key models.MInstrumentKey, id string) bool {
	for _, s := range m.conn.Subscriptions() {
		if s.Key.Equal(key) {
			return s.ID == id
		}
	}
	return false
}

func validate(sub models.MSubscription) error {
	if sub.ID == "" {
		return helpers.NewValidationError("subscription id cannot be empty")
	}
	if sub.Key.VenueID == "" || sub.Key.SymbolID == "" {
		return helpers.NewValidationError("subscription key needs venueId and symbolId")
	}
	return nil
}

// -----------------------------------------------------------------------------

// AddSubscription registers sub, makes it active and subscribes it.
func (m *Market) AddSubscription(sub models.MSubscription) error {
	if err := validate(sub); err != nil {
		return err
	}
	if m.indexOf(sub.ID) >= 0 {
		return helpers.NewValidationError(fmt.Sprintf("subscription '%s' already exists", sub.ID))
	}
	if sub.WindowSecs <= 0 {
		sub.WindowSecs = m.window
	}

	m.subs = append(m.subs, sub)
	m.selection.ActiveID = sub.ID
	m.conn.Add(sub)
	m.log.Info("added subscription %s for %s", sub.ID, m.dir.LabelOrFallback(sub.Key))
	m.notify()
	return nil
}

// -----------------------------------------------------------------------------

// UpdateSubscription repoints or resizes subscription id. Unknown ids are ignored.
func (m *Market) UpdateSubscription(id string, next models.MSubscription) error {
	i := m.indexOf(id)
	if i < 0 {
		return nil
	}
	next.ID = id
	if err := validate(next); err != nil {
		return err
	}
	cur := m.subs[i]
	if next.WindowSecs <= 0 {
		next.WindowSecs = cur.WindowSecs
	}

	if !cur.Key.Equal(next.Key) {
		m.store.Clear(id)
		if other, ok := m.sharing(cur.Key, id); ok && m.boundTo(cur.Key, id) {
			m.conn.Rebind(other)
		}
	}

	m.subs[i] = next
	m.conn.Update(next)
	m.notify()
	return nil
}

// -----------------------------------------------------------------------------

// RemoveSubscription drops id and its buffers. Unknown ids are ignored.
func (m *Market) RemoveSubscription(id string) {
	i := m.indexOf(id)
	if i < 0 {
		return
	}
	cur := m.subs[i]
	m.subs = slices.Delete(m.subs, i, i+1)
	m.store.Clear(id)

	if other, ok := m.sharing(cur.Key, id); ok {
		if m.boundTo(cur.Key, id) {
			m.conn.Rebind(other)
		}
	} else {
		m.conn.Remove(cur)
	}

	if m.selection.ActiveID == id {
		m.selection.ActiveID = ""
		if len(m.subs) > 0 {
			m.selection.ActiveID = m.subs[0].ID
		}
	}
	m.log.Info("removed subscription %s", id)
	m.notify()
}

// -----------------------------------------------------------------------------
// Selection
// -----------------------------------------------------------------------------

func (m *Market) SetActive(id string) error {
	if id != "" && m.indexOf(id) < 0 {
		return helpers.NewValidationError(fmt.Sprintf("unknown subscription '%s'", id))
	}
	m.selection.ActiveID = id
	m.notify()
	return nil
}

func (m *Market) SetMode(mode models.ViewMode) error {
	if err := m.selection.SetMode(mode); err != nil {
		return err
	}
	m.notify()
	return nil
}

func (m *Market) SetResolution(secs int64) error {
	if err := m.selection.SetResolution(secs); err != nil {
		return err
	}
	m.notify()
	return nil
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func (m *Market) ActiveID() string {
	return m.selection.ActiveID
}

func (m *Market) Status() string {
	return m.status
}

func (m *Market) State() connection.State {
	return m.conn.State()
}

func (m *Market) Subscriptions() []models.MSubscription {
	return slices.Clone(m.subs)
}

func (m *Market) Stats() map[string]series.BufferStats {
	return m.store.Stats()
}

// View composes the active subscription's data at the selected resolution,
// with its directory label and session state.
func (m *Market) View() models.MView {
	v := m.selection.Compose(m.subs, m.store)
	if v.Subscription == nil {
		return v
	}
	v.Label = m.dir.LabelOrFallback(v.Subscription.Key)
	if m.sessions != nil {
		if asset, ok := m.dir.Resolve(v.Subscription.Key); ok {
			v.MarketOpen = m.sessions.IsOpen(asset.MIC)
		}
	}
	return v
}

// -----------------------------------------------------------------------------

// Close shuts the feed connection down.
func (m *Market) Close() {
	m.conn.Close()
}
