package models

// MAsset is one Instrument Directory entry.
// MIC optionally names the exchange calendar (ISO 10383) used for session state.
type MAsset struct {
	Label    string `json:"label" yaml:"label"`
	VenueID  string `json:"venueId" yaml:"venue_id"`
	SymbolID string `json:"symbolId" yaml:"symbol_id"`
	Channel  string `json:"channel,omitempty" yaml:"channel,omitempty"`
	MIC      string `json:"mic,omitempty" yaml:"mic,omitempty"`
}

func (a MAsset) Key() MInstrumentKey {
	return MInstrumentKey{VenueID: a.VenueID, SymbolID: a.SymbolID, Channel: a.Channel}
}
