package analysis

import (
	"testing"

	"market-viewer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candle(ts int64, o, h, l, c float64, ticks int64) models.MCandle {
	return models.MCandle{BucketStartSec: ts, Open: o, High: h, Low: l, Close: c, Ticks: ticks}
}

func TestAggregateCandlesRollsUpOHLC(t *testing.T) {
	series := []models.MCandle{
		candle(0, 1, 2, 1, 2, 1),
		candle(60, 2, 3, 1, 3, 1),
		candle(120, 3, 4, 2, 1, 1),
		candle(180, 1, 5, 0, 4, 1),
	}

	got := AggregateCandles(series, 120)

	require.Len(t, got, 2)
	assert.Equal(t, candle(0, 1, 3, 1, 3, 2), got[0])
	assert.Equal(t, candle(120, 3, 5, 0, 4, 2), got[1])
}

func TestAggregateCandlesIdentity(t *testing.T) {
	series := []models.MCandle{candle(0, 1, 1, 1, 1, 1), candle(60, 2, 2, 2, 2, 1)}

	assert.Equal(t, series, AggregateCandles(series, 60))
	assert.Equal(t, series, AggregateCandles(series, 30))
	assert.Empty(t, AggregateCandles(nil, 300))
}

func TestAggregateCandlesDoesNotMutateInput(t *testing.T) {
	series := []models.MCandle{candle(60, 1, 2, 0, 1, 1), candle(120, 5, 9, 4, 6, 2)}
	before := append([]models.MCandle(nil), series...)

	first := AggregateCandles(series, 300)
	second := AggregateCandles(series, 300)

	assert.Equal(t, before, series)
	assert.Equal(t, first, second)
	require.Len(t, first, 1)
	assert.EqualValues(t, 0, first[0].BucketStartSec)
}

func TestAggregateCandlesKeepsFirstPrecision(t *testing.T) {
	p := 2.0
	a := candle(0, 1, 1, 1, 1, 1)
	a.Precision = &p
	got := AggregateCandles([]models.MCandle{a, candle(60, 1, 1, 1, 1, 1)}, 300)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Precision)
	assert.Equal(t, 2.0, *got[0].Precision)
}

func TestAggregateCandlesSparseBuckets(t *testing.T) {
	series := []models.MCandle{candle(0, 1, 1, 1, 1, 1), candle(3600, 2, 2, 2, 2, 1)}
	got := AggregateCandles(series, 300)
	require.Len(t, got, 2)
	assert.EqualValues(t, 0, got[0].BucketStartSec)
	assert.EqualValues(t, 3600, got[1].BucketStartSec)
}

func TestAggregateQuotesLastWins(t *testing.T) {
	points := []models.MQuotePoint{
		{TsSec: 0, Price: 1},
		{TsSec: 3, Price: 2},
		{TsSec: 5, Price: 3},
		{TsSec: 9, Price: 4},
		{TsSec: 10, Price: 5},
	}

	got := AggregateQuotes(points, 5)

	assert.Equal(t, []models.MQuotePoint{
		{TsSec: 0, Price: 2},
		{TsSec: 5, Price: 4},
		{TsSec: 10, Price: 5},
	}, got)
}

func TestAggregateQuotesIdentity(t *testing.T) {
	points := []models.MQuotePoint{{TsSec: 1, Price: 1}, {TsSec: 2, Price: 2}}
	assert.Equal(t, points, AggregateQuotes(points, 1))
	assert.Equal(t, points, AggregateQuotes(points, 0))
	assert.Empty(t, AggregateQuotes(nil, 60))
}

func TestBucketStart(t *testing.T) {
	assert.EqualValues(t, 120, BucketStart(179, 120))
	assert.EqualValues(t, 0, BucketStart(0, 60))
	assert.EqualValues(t, -60, BucketStart(-1, 60))
}
