package interfaces

import "market-viewer/src/models"

// -----------------------------------------------------------------------------
// IFeedHandler consumes routed feed data, keyed by subscription id.
// -----------------------------------------------------------------------------

type IFeedHandler interface {
	HandleCandles(subID string, candles []models.MCandle)
	HandleQuotes(subID string, quotes []models.MQuote)

	// -----------------------------------------------------------------------------
	// HandleStatus reports the human readable connection status line.
	HandleStatus(status string)
}

// -----------------------------------------------------------------------------
// IWindowLookup resolves the retention window of a subscription id.
// -----------------------------------------------------------------------------

type IWindowLookup interface {
	WindowFor(subID string) (int64, bool)
}
