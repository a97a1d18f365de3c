package series

import (
	"slices"
	"sort"

	"market-viewer/src/interfaces"
	"market-viewer/src/logger"
	"market-viewer/src/models"
)

const (
	DefaultMaxCandles     = 10000
	DefaultMaxQuotePoints = 20000
	DefaultWindowSecs     = 3600
)

// Limits bounds every per-subscription buffer.
type Limits struct {
	MaxCandles     int
	MaxQuotePoints int
	DefaultWindow  int64
}

// -----------------------------------------------------------------------------
// Store owns the per-subscription buffers: candles, quote history and the
// latest merged quote. Like the connection manager it is owned by one event
// loop and takes no locks.
// -----------------------------------------------------------------------------

type Store struct {
	limits  Limits
	windows interfaces.IWindowLookup
	log     *logger.Logger

	candles map[string][]models.MCandle
	history map[string][]models.MQuotePoint
	latest  map[string]models.MQuote
}

// -----------------------------------------------------------------------------

func NewStore(limits Limits, windows interfaces.IWindowLookup, log *logger.Logger) *Store {
	if limits.MaxCandles <= 0 {
		limits.MaxCandles = DefaultMaxCandles
	}
	if limits.MaxQuotePoints <= 0 {
		limits.MaxQuotePoints = DefaultMaxQuotePoints
	}
	if limits.DefaultWindow <= 0 {
		limits.DefaultWindow = DefaultWindowSecs
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{
		limits:  limits,
		windows: windows,
		log:     log,
		candles: make(map[string][]models.MCandle),
		history: make(map[string][]models.MQuotePoint),
		latest:  make(map[string]models.MQuote),
	}
}

// -----------------------------------------------------------------------------

// windowFor falls back to DefaultWindow for ids the lookup does not know.
func (s *Store) windowFor(id string) int64 {
	if s.windows != nil {
		if w, ok := s.windows.WindowFor(id); ok && w > 0 {
			return w
		}
	}
	return s.limits.DefaultWindow
}

// -----------------------------------------------------------------------------
// Candles
// -----------------------------------------------------------------------------

// UpsertCandles merges items into id's buffer. Items replace existing buckets
// with the same start and the result is sorted, windowed and capped.
func (s *Store) UpsertCandles(id string, items []models.MCandle) {
	if len(items) == 0 {
		return
	}
	buf := s.candles[id]

	index := make(map[int64]int, len(buf)+len(items))
	for i, c := range buf {
		index[c.BucketStartSec] = i
	}
	for _, c := range items {
		c.BucketStartSec = models.ToSec(c.BucketStartSec)
		if pos, ok := index[c.BucketStartSec]; ok {
			buf[pos] = c
			continue
		}
		index[c.BucketStartSec] = len(buf)
		buf = append(buf, c)
	}

	sort.Slice(buf, func(i, j int) bool {
		return buf[i].BucketStartSec < buf[j].BucketStartSec
	})

	// window
	minSec := buf[len(buf)-1].BucketStartSec - s.windowFor(id)
	cut := sort.Search(len(buf), func(i int) bool {
		return buf[i].BucketStartSec >= minSec
	})
	buf = slices.Delete(buf, 0, cut)

	// capacity
	if over := len(buf) - s.limits.MaxCandles; over > 0 {
		buf = slices.Delete(buf, 0, over)
	}

	s.candles[id] = buf
}

// -----------------------------------------------------------------------------
// Quotes
// -----------------------------------------------------------------------------

// UpsertQuotes merges the last item into the latest snapshot and adds one
// history point per item, skipping points equal to the one before them.
func (s *Store) UpsertQuotes(id string, items []models.MQuote) {
	if len(items) == 0 {
		return
	}

	prev := s.latest[id]
	s.latest[id] = prev.Merge(items[len(items)-1])

	hist := s.history[id]
	for _, q := range items {
		p, ok := q.Point()
		if !ok {
			continue
		}
		pos := sort.Search(len(hist), func(i int) bool {
			return hist[i].TsSec > p.TsSec
		})
		if pos > 0 && hist[pos-1] == p {
			continue
		}
		hist = slices.Insert(hist, pos, p)
	}

	if len(hist) > 0 {
		minSec := hist[len(hist)-1].TsSec - s.windowFor(id)
		cut := sort.Search(len(hist), func(i int) bool {
			return hist[i].TsSec >= minSec
		})
		hist = slices.Delete(hist, 0, cut)

		if over := len(hist) - s.limits.MaxQuotePoints; over > 0 {
			hist = slices.Delete(hist, 0, over)
		}
	}

	s.history[id] = hist
}

// -----------------------------------------------------------------------------
// Reads return copies
// -----------------------------------------------------------------------------

func (s *Store) Candles(id string) []models.MCandle {
	return slices.Clone(s.candles[id])
}

func (s *Store) QuoteHistory(id string) []models.MQuotePoint {
	return slices.Clone(s.history[id])
}

// LatestQuote returns nil until the first quote for id arrived.
func (s *Store) LatestQuote(id string) *models.MQuote {
	q, ok := s.latest[id]
	if !ok {
		return nil
	}
	return &q
}

// -----------------------------------------------------------------------------

// Clear drops every buffer held for id.
func (s *Store) Clear(id string) {
	delete(s.candles, id)
	delete(s.history, id)
	delete(s.latest, id)
}

// -----------------------------------------------------------------------------

// BufferStats counts the entries held for one subscription.
type BufferStats struct {
	Candles     int  `json:"candles"`
	QuotePoints int  `json:"quotePoints"`
	HasQuote    bool `json:"hasQuote"`
}

// Stats reports buffer sizes per id.
func (s *Store) Stats() map[string]BufferStats {
	out := make(map[string]BufferStats)
	for id, c := range s.candles {
		v := out[id]
		v.Candles = len(c)
		out[id] = v
	}
	for id, h := range s.history {
		v := out[id]
		v.QuotePoints = len(h)
		out[id] = v
	}
	for id := range s.latest {
		v := out[id]
		v.HasQuote = true
		out[id] = v
	}
	return out
}
