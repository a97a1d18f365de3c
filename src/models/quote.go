package models

// MQuote is a full quote snapshot as pushed by the feed.
// Every field is optional on the wire; nil means "not present in this update".
type MQuote struct {
	S         *MInstrumentKey `json:"s,omitempty"`
	TsUnixSec *int64          `json:"tsUnixSec,omitempty"`
	Price     *float64        `json:"price,omitempty"`
	High      *float64        `json:"high,omitempty"`
	Low       *float64        `json:"low,omitempty"`
	Open      *float64        `json:"open,omitempty"`
	PrevClose *float64        `json:"prevClose,omitempty"`
	Abs       *float64        `json:"abs,omitempty"`
	Rel       *float64        `json:"rel,omitempty"`
	TickSize  *float64        `json:"tickSize,omitempty"`
	Active    *bool           `json:"active,omitempty"`
	Tick      *int64          `json:"tick,omitempty"`
	SubID     *int64          `json:"subId,omitempty"`
	Precision *float64        `json:"precision,omitempty"`
}

// MQuotePoint is the compact history entry used for charting.
type MQuotePoint struct {
	TsSec int64   `json:"tsSec"`
	Price float64 `json:"price"`
}

// -----------------------------------------------------------------------------

// Merge overlays the fields present in next onto q and returns the result.
// Fields absent from next keep their previous value.
func (q MQuote) Merge(next MQuote) MQuote {
	out := q
	if next.S != nil {
		out.S = next.S
	}
	if next.TsUnixSec != nil {
		out.TsUnixSec = next.TsUnixSec
	}
	if next.Price != nil {
		out.Price = next.Price
	}
	if next.High != nil {
		out.High = next.High
	}
	if next.Low != nil {
		out.Low = next.Low
	}
	if next.Open != nil {
		out.Open = next.Open
	}
	if next.PrevClose != nil {
		out.PrevClose = next.PrevClose
	}
	if next.Abs != nil {
		out.Abs = next.Abs
	}
	if next.Rel != nil {
		out.Rel = next.Rel
	}
	if next.TickSize != nil {
		out.TickSize = next.TickSize
	}
	if next.Active != nil {
		out.Active = next.Active
	}
	if next.Tick != nil {
		out.Tick = next.Tick
	}
	if next.SubID != nil {
		out.SubID = next.SubID
	}
	if next.Precision != nil {
		out.Precision = next.Precision
	}
	return out
}

// -----------------------------------------------------------------------------

// Point derives the history entry. ok is false when timestamp or price is missing.
func (q MQuote) Point() (MQuotePoint, bool) {
	if q.TsUnixSec == nil || q.Price == nil {
		return MQuotePoint{}, false
	}
	return MQuotePoint{TsSec: ToSec(*q.TsUnixSec), Price: *q.Price}, true
}
