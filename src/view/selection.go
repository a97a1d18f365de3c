package view

import (
	"market-viewer/src/analysis"
	"market-viewer/src/helpers"
	"market-viewer/src/models"
)

// SeriesReader is the read side of the series store.
type SeriesReader interface {
	Candles(id string) []models.MCandle
	QuoteHistory(id string) []models.MQuotePoint
	LatestQuote(id string) *models.MQuote
}

// -----------------------------------------------------------------------------
// Selection tracks the active subscription, its chart mode and resolution.
// -----------------------------------------------------------------------------

type Selection struct {
	ActiveID       string
	Mode           models.ViewMode
	ResolutionSecs int64
}

func NewSelection(resolutionSecs int64) *Selection {
	if resolutionSecs <= 0 {
		resolutionSecs = analysis.NativeCandleSecs
	}
	return &Selection{Mode: models.ModeCandles, ResolutionSecs: resolutionSecs}
}

// -----------------------------------------------------------------------------

func (s *Selection) SetMode(mode models.ViewMode) error {
	if !mode.Valid() {
		return helpers.NewValidationError("unknown view mode: " + string(mode))
	}
	s.Mode = mode
	return nil
}

// -----------------------------------------------------------------------------

func (s *Selection) SetResolution(secs int64) error {
	if secs <= 0 {
		return helpers.NewValidationError("resolution must be greater than 0")
	}
	s.ResolutionSecs = secs
	return nil
}

// -----------------------------------------------------------------------------

// Compose builds the view of the active subscription from the raw buffers.
// It is recomputed on every call.
func (s *Selection) Compose(subs []models.MSubscription, store SeriesReader) models.MView {
	v := models.MView{
		Mode:              s.Mode,
		ResolutionSecs:    s.ResolutionSecs,
		AggregatedCandles: []models.MCandle{},
		AggregatedQuotes:  []models.MQuotePoint{},
	}

	var active *models.MSubscription
	for i := range subs {
		if subs[i].ID == s.ActiveID {
			sub := subs[i]
			active = &sub
			break
		}
	}
	if active == nil {
		return v
	}

	v.Subscription = active
	v.LatestQuote = store.LatestQuote(active.ID)
	if candles := analysis.AggregateCandles(store.Candles(active.ID), s.ResolutionSecs); candles != nil {
		v.AggregatedCandles = candles
	}
	if quotes := analysis.AggregateQuotes(store.QuoteHistory(active.ID), s.ResolutionSecs); quotes != nil {
		v.AggregatedQuotes = quotes
	}
	return v
}
