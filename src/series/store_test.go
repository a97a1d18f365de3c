package series

import (
	"testing"

	"market-viewer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type windows map[string]int64

func (w windows) WindowFor(id string) (int64, bool) {
	v, ok := w[id]
	return v, ok
}

func c(ts int64, close float64) models.MCandle {
	return models.MCandle{BucketStartSec: ts, Open: close, High: close, Low: close, Close: close, Ticks: 1}
}

func f(v float64) *float64 { return &v }
func i64(v int64) *int64   { return &v }

func q(ts int64, price float64) models.MQuote {
	return models.MQuote{TsUnixSec: i64(ts), Price: f(price)}
}

func starts(cs []models.MCandle) []int64 {
	out := make([]int64, len(cs))
	for i, c := range cs {
		out[i] = c.BucketStartSec
	}
	return out
}

// -----------------------------------------------------------------------------

func TestUpsertCandlesIsIdempotent(t *testing.T) {
	s := NewStore(Limits{}, windows{"a": 3600}, nil)
	s.UpsertCandles("a", []models.MCandle{c(60, 1), c(120, 2)})
	once := s.Candles("a")

	s.UpsertCandles("a", []models.MCandle{c(120, 2)})
	assert.Equal(t, once, s.Candles("a"))
}

func TestUpsertCandlesReplacesAndSorts(t *testing.T) {
	s := NewStore(Limits{}, windows{"a": 3600}, nil)
	s.UpsertCandles("a", []models.MCandle{c(180, 3), c(60, 1)})
	s.UpsertCandles("a", []models.MCandle{c(120, 2), c(60, 9)})

	got := s.Candles("a")
	assert.Equal(t, []int64{60, 120, 180}, starts(got))
	assert.Equal(t, 9.0, got[0].Close)
}

func TestUpsertCandlesNormalizesMillis(t *testing.T) {
	s := NewStore(Limits{}, windows{"a": 3600}, nil)
	s.UpsertCandles("a", []models.MCandle{c(1_700_000_040_000, 1)})
	s.UpsertCandles("a", []models.MCandle{c(1_700_000_040, 2)})

	got := s.Candles("a")
	require.Len(t, got, 1)
	assert.EqualValues(t, 1_700_000_040, got[0].BucketStartSec)
	assert.Equal(t, 2.0, got[0].Close)
}

func TestUpsertCandlesWindowEviction(t *testing.T) {
	s := NewStore(Limits{}, windows{"a": 120}, nil)
	s.UpsertCandles("a", []models.MCandle{c(0, 1), c(60, 1), c(120, 1), c(180, 1), c(240, 1)})

	got := s.Candles("a")
	// last is 240, so nothing older than 120 survives
	assert.Equal(t, []int64{120, 180, 240}, starts(got))
	for _, x := range got {
		assert.GreaterOrEqual(t, x.BucketStartSec, got[len(got)-1].BucketStartSec-120)
	}
}

func TestUpsertCandlesCapacityEviction(t *testing.T) {
	s := NewStore(Limits{MaxCandles: 3}, windows{"a": 1 << 30}, nil)
	var items []models.MCandle
	for i := int64(0); i < 10; i++ {
		items = append(items, c(i*60, float64(i)))
	}
	s.UpsertCandles("a", items)

	assert.Equal(t, []int64{420, 480, 540}, starts(s.Candles("a")))
}

func TestUpsertCandlesDefaultCap(t *testing.T) {
	s := NewStore(Limits{}, windows{"a": 1 << 40}, nil)
	items := make([]models.MCandle, 0, DefaultMaxCandles+5)
	for i := int64(0); i < DefaultMaxCandles+5; i++ {
		items = append(items, c(i*60, 1))
	}
	s.UpsertCandles("a", items)

	got := s.Candles("a")
	require.Len(t, got, DefaultMaxCandles)
	assert.EqualValues(t, 5*60, got[0].BucketStartSec)
}

func TestUnknownWindowUsesDefault(t *testing.T) {
	s := NewStore(Limits{DefaultWindow: 60}, nil, nil)
	s.UpsertCandles("x", []models.MCandle{c(0, 1), c(60, 1), c(120, 1)})
	assert.Equal(t, []int64{60, 120}, starts(s.Candles("x")))
}

func TestCandlesReturnsCopy(t *testing.T) {
	s := NewStore(Limits{}, nil, nil)
	s.UpsertCandles("a", []models.MCandle{c(60, 1)})
	got := s.Candles("a")
	got[0].Close = 99
	assert.Equal(t, 1.0, s.Candles("a")[0].Close)
}

// -----------------------------------------------------------------------------

func TestUpsertQuotesDedup(t *testing.T) {
	s := NewStore(Limits{}, windows{"a": 3600}, nil)
	s.UpsertQuotes("a", []models.MQuote{q(100, 1.5)})
	s.UpsertQuotes("a", []models.MQuote{q(100, 1.5)})

	assert.Equal(t, []models.MQuotePoint{{TsSec: 100, Price: 1.5}}, s.QuoteHistory("a"))

	// same timestamp, new price is kept
	s.UpsertQuotes("a", []models.MQuote{q(100, 1.6)})
	assert.Len(t, s.QuoteHistory("a"), 2)
}

func TestUpsertQuotesMergesLatest(t *testing.T) {
	s := NewStore(Limits{}, nil, nil)
	first := q(100, 1)
	first.High = f(5)
	first.PrevClose = f(0.9)
	s.UpsertQuotes("a", []models.MQuote{first})

	s.UpsertQuotes("a", []models.MQuote{{Price: f(2)}})

	latest := s.LatestQuote("a")
	require.NotNil(t, latest)
	assert.Equal(t, 2.0, *latest.Price)
	assert.Equal(t, 5.0, *latest.High)
	assert.Equal(t, 0.9, *latest.PrevClose)
	assert.EqualValues(t, 100, *latest.TsUnixSec)

	// a point without timestamp does not enter history
	assert.Len(t, s.QuoteHistory("a"), 1)
}

func TestUpsertQuotesLatestTakesLastItem(t *testing.T) {
	s := NewStore(Limits{}, nil, nil)
	s.UpsertQuotes("a", []models.MQuote{q(1, 1), q(2, 2), q(3, 3)})

	assert.Equal(t, 3.0, *s.LatestQuote("a").Price)
	assert.Len(t, s.QuoteHistory("a"), 3)
}

func TestUpsertQuotesSortedAndWindowed(t *testing.T) {
	s := NewStore(Limits{}, windows{"a": 10}, nil)
	s.UpsertQuotes("a", []models.MQuote{q(5, 1), q(20, 2), q(12, 3), q(18, 4)})

	got := s.QuoteHistory("a")
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].TsSec, got[i].TsSec)
	}
	// last is 20, so 5 falls outside the 10s window
	assert.Equal(t, []models.MQuotePoint{{TsSec: 12, Price: 3}, {TsSec: 18, Price: 4}, {TsSec: 20, Price: 2}}, got)
}

func TestUpsertQuotesOutOfOrderInsert(t *testing.T) {
	s := NewStore(Limits{}, windows{"a": 3600}, nil)
	s.UpsertQuotes("a", []models.MQuote{q(10, 1), q(30, 3)})
	s.UpsertQuotes("a", []models.MQuote{q(20, 2)})

	assert.Equal(t, []models.MQuotePoint{{TsSec: 10, Price: 1}, {TsSec: 20, Price: 2}, {TsSec: 30, Price: 3}}, s.QuoteHistory("a"))
}

func TestUpsertQuotesCapacity(t *testing.T) {
	s := NewStore(Limits{MaxQuotePoints: 2}, windows{"a": 3600}, nil)
	s.UpsertQuotes("a", []models.MQuote{q(1, 1), q(2, 2), q(3, 3)})
	assert.Equal(t, []models.MQuotePoint{{TsSec: 2, Price: 2}, {TsSec: 3, Price: 3}}, s.QuoteHistory("a"))
}

// -----------------------------------------------------------------------------

func TestClearDropsEverything(t *testing.T) {
	s := NewStore(Limits{}, nil, nil)
	s.UpsertCandles("a", []models.MCandle{c(60, 1)})
	s.UpsertQuotes("a", []models.MQuote{q(1, 1)})
	s.UpsertCandles("b", []models.MCandle{c(60, 1)})

	s.Clear("a")
	assert.Empty(t, s.Candles("a"))
	assert.Empty(t, s.QuoteHistory("a"))
	assert.Nil(t, s.LatestQuote("a"))
	assert.Len(t, s.Candles("b"), 1)

	stats := s.Stats()
	assert.NotContains(t, stats, "a")
	assert.Equal(t, BufferStats{Candles: 1}, stats["b"])
}
