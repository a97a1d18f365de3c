package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Wire protocol (JSON frames over the streaming socket)
// -----------------------------------------------------------------------------

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"

	FrameCandles = "candles"
	FrameCandle  = "candle"
	FrameQuotes  = "quotes"
	FrameQuote   = "quote"
	FramePing    = "ping"
	FramePong    = "pong"
	FrameError   = "error"
)

// MSubscribeCommand asks the feed to start streaming an instrument.
type MSubscribeCommand struct {
	Action   string `json:"action"`
	VenueID  string `json:"venueId"`
	SymbolID string `json:"symbolId"`
	Channel  string `json:"channel,omitempty"`
	Window   int64  `json:"window"`
}

// MUnsubscribeCommand stops an instrument stream.
type MUnsubscribeCommand struct {
	Action   string `json:"action"`
	VenueID  string `json:"venueId"`
	SymbolID string `json:"symbolId"`
	Channel  string `json:"channel,omitempty"`
}

// MControlMessage is the generic inbound control shape seen by the feed server.
// Window is a pointer so a missing window can be told apart from zero.
type MControlMessage struct {
	Type     string `json:"type,omitempty"`
	Action   string `json:"action,omitempty"`
	VenueID  string `json:"venueId,omitempty"`
	SymbolID string `json:"symbolId,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Window   *int64 `json:"window,omitempty"`
}

// MPingCommand is the heartbeat frame.
type MPingCommand struct {
	Type string `json:"type"`
}

// MInboundFrame is any non-array frame pushed by the feed.
// Key is nil when the frame carries no key field.
type MInboundFrame struct {
	Type    string          `json:"type"`
	Key     *MInstrumentKey `json:"key,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// MOutboundFrame is the frame shape written by the feed side.
type MOutboundFrame struct {
	Type    string          `json:"type"`
	Key     *MInstrumentKey `json:"key,omitempty"`
	Data    interface{}     `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// -----------------------------------------------------------------------------

func NewSubscribeCommand(sub MSubscription) MSubscribeCommand {
	return MSubscribeCommand{
		Action:   ActionSubscribe,
		VenueID:  sub.Key.VenueID,
		SymbolID: sub.Key.SymbolID,
		Channel:  sub.Key.Channel,
		Window:   sub.WindowSecs,
	}
}

// -----------------------------------------------------------------------------

func NewUnsubscribeCommand(key MInstrumentKey) MUnsubscribeCommand {
	return MUnsubscribeCommand{
		Action:   ActionUnsubscribe,
		VenueID:  key.VenueID,
		SymbolID: key.SymbolID,
		Channel:  key.Channel,
	}
}
