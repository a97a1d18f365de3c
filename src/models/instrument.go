package models

import "fmt"

// DefaultChannel is used when a key carries no channel.
const DefaultChannel = "last"

// MInstrumentKey identifies a symbol on a venue and data channel.
type MInstrumentKey struct {
	VenueID  string `json:"venueId" yaml:"venue_id"`
	SymbolID string `json:"symbolId" yaml:"symbol_id"`
	Channel  string `json:"channel,omitempty" yaml:"channel,omitempty"`
}

// -----------------------------------------------------------------------------

// ChannelOrDefault returns the channel, falling back to "last".
func (k MInstrumentKey) ChannelOrDefault() string {
	if k.Channel == "" {
		return DefaultChannel
	}
	return k.Channel
}

// -----------------------------------------------------------------------------

// Canonical returns the identity string "venueId:symbolId:channel".
// Two keys are equal iff their canonical strings match.
func (k MInstrumentKey) Canonical() string {
	return fmt.Sprintf("%s:%s:%s", k.VenueID, k.SymbolID, k.ChannelOrDefault())
}

// -----------------------------------------------------------------------------

func (k MInstrumentKey) Equal(other MInstrumentKey) bool {
	return k.Canonical() == other.Canonical()
}

// -----------------------------------------------------------------------------

// MSubscription binds a caller-assigned id to an instrument and a retention window.
type MSubscription struct {
	ID         string         `json:"id"`
	Key        MInstrumentKey `json:"key"`
	WindowSecs int64          `json:"windowSecs"`
}
