// Package simulator is a development stand-in for the streaming quote server.
// It random-walks prices for a set of instruments and serves them over the
// same websocket protocol the viewer consumes.
package simulator

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"market-viewer/src/models"

	"github.com/shopspring/decimal"
)

const (
	candleSecs       = 60
	defaultRetention = 24 * time.Hour
	defaultPrice     = 100
)

// Base prices for the default directory labels.
var basePrices = map[string]float64{
	"DAX":               18500,
	"DOW JONES":         39000,
	"S&P 500":           5200,
	"NASDAQ 100":        18200,
	"NIKKEI225":         38500,
	"GOLD":              2350,
	"EUR/USD":           1.0850,
	"BTC/USD":           64000,
	"ETH/USD":           3100,
	"BRENT CRUDE ÖL":    83,
	"EURO BOND FUTURES": 131,
}

// Tick is the result of one simulation step for one instrument.
type Tick struct {
	Key    models.MInstrumentKey
	Quote  models.MQuote
	Candle models.MCandle
}

type instrument struct {
	key       models.MInstrumentKey
	price     decimal.Decimal
	tick      decimal.Decimal
	prevClose decimal.Decimal
	dayOpen   decimal.Decimal
	dayHigh   decimal.Decimal
	dayLow    decimal.Decimal
	seq       int64
	candles   []models.MCandle
	quotes    []models.MQuote
}

// -----------------------------------------------------------------------------
// Feed
// -----------------------------------------------------------------------------

type Feed struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	volatility  float64
	retention   time.Duration
	instruments map[string]*instrument
}

// NewFeed seeds one instrument per asset. The seed makes runs reproducible.
func NewFeed(assets []models.MAsset, seed int64) *Feed {
	f := &Feed{
		rnd:         rand.New(rand.NewSource(seed)),
		volatility:  0.0004,
		retention:   defaultRetention,
		instruments: make(map[string]*instrument),
	}
	for _, a := range assets {
		base, ok := basePrices[a.Label]
		if !ok {
			base = defaultPrice
		}
		f.add(a.Key(), base)
	}
	return f
}

func (f *Feed) add(key models.MInstrumentKey, base float64) *instrument {
	key.Channel = key.ChannelOrDefault()
	tick := tickSizeFor(base)
	price := roundToTick(decimal.NewFromFloat(base), tick)
	in := &instrument{
		key:       key,
		price:     price,
		tick:      tick,
		prevClose: price,
		dayOpen:   price,
		dayHigh:   price,
		dayLow:    price,
	}
	f.instruments[key.Canonical()] = in
	return in
}

// ensure returns the instrument for key, creating a synthetic one for keys
// that were not seeded.
func (f *Feed) ensure(key models.MInstrumentKey) *instrument {
	if in, ok := f.instruments[key.Canonical()]; ok {
		return in
	}
	return f.add(key, defaultPrice)
}

// -----------------------------------------------------------------------------

func tickSizeFor(price float64) decimal.Decimal {
	if price < 10 {
		return decimal.New(1, -5)
	}
	return decimal.New(1, -2)
}

func roundToTick(price, tick decimal.Decimal) decimal.Decimal {
	return price.Div(tick).Round(0).Mul(tick)
}

func precisionOf(tick decimal.Decimal) float64 {
	if exp := tick.Exponent(); exp < 0 {
		return float64(-exp)
	}
	return 0
}

// -----------------------------------------------------------------------------

// Step moves every instrument one random-walk step at now and returns the new
// quote and the updated current candle for each.
func (f *Feed) Step(now time.Time) []Tick {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.instruments))
	for k := range f.instruments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Tick, 0, len(keys))
	for _, k := range keys {
		in := f.instruments[k]
		out = append(out, f.step(in, now))
	}
	return out
}

func (f *Feed) step(in *instrument, now time.Time) Tick {
	move := in.price.Mul(decimal.NewFromFloat(f.volatility * f.rnd.NormFloat64()))
	next := roundToTick(in.price.Add(move), in.tick)
	if next.LessThanOrEqual(decimal.Zero) {
		next = in.tick
	}
	in.price = next
	in.seq++
	if next.GreaterThan(in.dayHigh) {
		in.dayHigh = next
	}
	if next.LessThan(in.dayLow) {
		in.dayLow = next
	}

	quote := in.quote(now)
	in.quotes = append(in.quotes, quote)
	candle := in.updateCandle(now)
	in.trim(now.Add(-f.retention))

	return Tick{Key: in.key, Quote: quote, Candle: candle}
}

func (in *instrument) quote(now time.Time) models.MQuote {
	key := in.key
	ts := now.UnixMilli()
	price, _ := in.price.Float64()
	high, _ := in.dayHigh.Float64()
	low, _ := in.dayLow.Float64()
	open, _ := in.dayOpen.Float64()
	prev, _ := in.prevClose.Float64()
	absDec := in.price.Sub(in.prevClose)
	abs, _ := absDec.Float64()
	rel, _ := absDec.Div(in.prevClose).Mul(decimal.NewFromInt(100)).Round(4).Float64()
	tick, _ := in.tick.Float64()
	precision := precisionOf(in.tick)
	active := true
	seq := in.seq

	return models.MQuote{
		S:         &key,
		TsUnixSec: &ts,
		Price:     &price,
		High:      &high,
		Low:       &low,
		Open:      &open,
		PrevClose: &prev,
		Abs:       &abs,
		Rel:       &rel,
		TickSize:  &tick,
		Active:    &active,
		Tick:      &seq,
		Precision: &precision,
	}
}

func (in *instrument) updateCandle(now time.Time) models.MCandle {
	bucket := now.Unix() - now.Unix()%candleSecs
	price, _ := in.price.Float64()

	if n := len(in.candles); n > 0 && in.candles[n-1].BucketStartSec == bucket {
		c := &in.candles[n-1]
		if price > c.High {
			c.High = price
		}
		if price < c.Low {
			c.Low = price
		}
		c.Close = price
		c.Ticks++
		return *c
	}

	precision := precisionOf(in.tick)
	c := models.MCandle{
		BucketStartSec: bucket,
		Open:           price,
		High:           price,
		Low:            price,
		Close:          price,
		Ticks:          1,
		Precision:      &precision,
	}
	in.candles = append(in.candles, c)
	return c
}

func (in *instrument) trim(cutoff time.Time) {
	cutSec := cutoff.Unix()
	i := sort.Search(len(in.candles), func(i int) bool { return in.candles[i].BucketStartSec >= cutSec })
	in.candles = in.candles[i:]

	cutMs := cutoff.UnixMilli()
	j := sort.Search(len(in.quotes), func(j int) bool { return *in.quotes[j].TsUnixSec >= cutMs })
	in.quotes = in.quotes[j:]
}

// -----------------------------------------------------------------------------

// Snapshot returns the candles and quotes of the last window at now. When the
// window holds nothing the last known candle and quote are returned instead.
func (f *Feed) Snapshot(key models.MInstrumentKey, window time.Duration, now time.Time) ([]models.MCandle, []models.MQuote) {
	f.mu.Lock()
	defer f.mu.Unlock()

	in := f.ensure(key)
	from := now.Add(-window)

	fromSec := from.Unix()
	i := sort.Search(len(in.candles), func(i int) bool { return in.candles[i].BucketStartSec >= fromSec })
	candles := append([]models.MCandle{}, in.candles[i:]...)
	if len(candles) == 0 && len(in.candles) > 0 {
		candles = append(candles, in.candles[len(in.candles)-1])
	}

	fromMs := from.UnixMilli()
	j := sort.Search(len(in.quotes), func(j int) bool { return *in.quotes[j].TsUnixSec >= fromMs })
	quotes := append([]models.MQuote{}, in.quotes[j:]...)
	if len(quotes) == 0 && len(in.quotes) > 0 {
		quotes = append(quotes, in.quotes[len(in.quotes)-1])
	}
	return candles, quotes
}

// Track makes sure key is simulated from the next step on.
func (f *Feed) Track(key models.MInstrumentKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensure(key)
}
