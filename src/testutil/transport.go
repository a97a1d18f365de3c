package testutil

import (
	"encoding/json"
	"errors"

	"market-viewer/src/helpers"
	"market-viewer/src/interfaces"
	"market-viewer/src/models"
)

// -----------------------------------------------------------------------------
// FakeTransport records frames and lets a test drive listener events.
// -----------------------------------------------------------------------------

type FakeTransport struct {
	URL      string
	Listener interfaces.ITransportListener
	Sent     [][]byte
	Open     bool
	Closed   bool
}

func (t *FakeTransport) Send(data []byte) error {
	if !t.Open || t.Closed {
		return helpers.ErrNotConnected
	}
	t.Sent = append(t.Sent, append([]byte(nil), data...))
	return nil
}

func (t *FakeTransport) Close() error {
	t.Closed = true
	t.Open = false
	return nil
}

// -----------------------------------------------------------------------------

// Accept completes the handshake.
func (t *FakeTransport) Accept() {
	t.Open = true
	t.Listener.OnOpen()
}

// Push delivers one inbound frame.
func (t *FakeTransport) Push(data string) {
	t.Listener.OnMessage([]byte(data))
}

// PushJSON marshals v and delivers it.
func (t *FakeTransport) PushJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	t.Listener.OnMessage(data)
}

// Fail reports an error, as gorilla does on an abnormal close.
func (t *FakeTransport) Fail(err error) {
	t.Open = false
	if err == nil {
		err = errors.New("connection reset")
	}
	t.Listener.OnError(err)
}

// Drop reports a normal close.
func (t *FakeTransport) Drop() {
	t.Open = false
	t.Listener.OnClose()
}

// -----------------------------------------------------------------------------

// SentFrames decodes every recorded frame into a generic map.
func (t *FakeTransport) SentFrames() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(t.Sent))
	for _, raw := range t.Sent {
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Actions returns the "action" or "type" of every sent frame.
func (t *FakeTransport) Actions() []string {
	var out []string
	for _, m := range t.SentFrames() {
		if a, ok := m["action"].(string); ok {
			out = append(out, a)
			continue
		}
		if ty, ok := m["type"].(string); ok {
			out = append(out, ty)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// FakeDialer hands out FakeTransports and remembers them in dial order.
// -----------------------------------------------------------------------------

type FakeDialer struct {
	Transports []*FakeTransport
	Err        error
}

func (d *FakeDialer) Dial(url string, listener interfaces.ITransportListener) (interfaces.ITransport, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	t := &FakeTransport{URL: url, Listener: listener}
	d.Transports = append(d.Transports, t)
	return t, nil
}

// Last returns the most recent transport or nil.
func (d *FakeDialer) Last() *FakeTransport {
	if len(d.Transports) == 0 {
		return nil
	}
	return d.Transports[len(d.Transports)-1]
}

// Dials counts dial attempts.
func (d *FakeDialer) Dials() int {
	return len(d.Transports)
}

// -----------------------------------------------------------------------------
// RecordingHandler captures everything the manager routes.
// -----------------------------------------------------------------------------

type RecordingHandler struct {
	Candles  map[string][][]models.MCandle
	Quotes   map[string][][]models.MQuote
	Statuses []string
}

func NewRecordingHandler() *RecordingHandler {
	return &RecordingHandler{
		Candles: map[string][][]models.MCandle{},
		Quotes:  map[string][][]models.MQuote{},
	}
}

func (h *RecordingHandler) HandleCandles(subID string, candles []models.MCandle) {
	h.Candles[subID] = append(h.Candles[subID], candles)
}

func (h *RecordingHandler) HandleQuotes(subID string, quotes []models.MQuote) {
	h.Quotes[subID] = append(h.Quotes[subID], quotes)
}

func (h *RecordingHandler) HandleStatus(status string) {
	h.Statuses = append(h.Statuses, status)
}

// Deliveries counts every candle and quote batch received.
func (h *RecordingHandler) Deliveries() int {
	n := 0
	for _, b := range h.Candles {
		n += len(b)
	}
	for _, b := range h.Quotes {
		n += len(b)
	}
	return n
}

func (h *RecordingHandler) LastStatus() string {
	if len(h.Statuses) == 0 {
		return ""
	}
	return h.Statuses[len(h.Statuses)-1]
}
