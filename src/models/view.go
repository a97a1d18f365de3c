package models

// ViewMode selects what the active view charts.
type ViewMode string

const (
	ModeCandles ViewMode = "candles"
	ModeQuote   ViewMode = "quote"
)

func (m ViewMode) Valid() bool {
	return m == ModeCandles || m == ModeQuote
}

// -----------------------------------------------------------------------------
// View composition returned on every read (never cached)
// -----------------------------------------------------------------------------

type MView struct {
	Subscription      *MSubscription `json:"subscription"`
	Label             string         `json:"label,omitempty"`
	LatestQuote       *MQuote        `json:"latestQuote"`
	AggregatedCandles []MCandle      `json:"aggregatedCandles"`
	AggregatedQuotes  []MQuotePoint  `json:"aggregatedQuotes"`
	Mode              ViewMode       `json:"mode"`
	ResolutionSecs    int64          `json:"resolutionSecs"`
	MarketOpen        *bool          `json:"marketOpen,omitempty"`
}

// MViewMessage is pushed to local dashboard clients.
type MViewMessage struct {
	Type      string `json:"type"` // "INITIAL" or "UPDATE"
	Status    string `json:"status"`
	State     string `json:"state"`
	View      MView  `json:"view"`
	Timestamp int64  `json:"timestamp"`
}
