package analysis

import "market-viewer/src/models"

const (
	// NativeCandleSecs is the resolution candles arrive in.
	NativeCandleSecs int64 = 60
	// NativeQuoteSecs is the finest quote resolution worth downsampling from.
	NativeQuoteSecs int64 = 1
)

// -----------------------------------------------------------------------------

// BucketStart floors ts to the start of its bucket.
func BucketStart(ts, bucketSecs int64) int64 {
	mod := ts % bucketSecs
	if mod < 0 {
		mod += bucketSecs
	}
	return ts - mod
}

// -----------------------------------------------------------------------------

// AggregateCandles rolls a sorted candle series up into bucketSecs-wide OHLC
// buckets. At or below the native resolution the input is returned as is.
// The input is never modified.
func AggregateCandles(series []models.MCandle, bucketSecs int64) []models.MCandle {
	if bucketSecs <= NativeCandleSecs || len(series) == 0 {
		return series
	}

	out := make([]models.MCandle, 0, len(series)/int(bucketSecs/NativeCandleSecs)+1)
	var acc models.MCandle
	open := false

	for _, c := range series {
		bucket := BucketStart(c.BucketStartSec, bucketSecs)
		if open && bucket != acc.BucketStartSec {
			out = append(out, acc)
			open = false
		}
		if !open {
			acc = models.MCandle{
				BucketStartSec: bucket,
				Open:           c.Open,
				High:           c.High,
				Low:            c.Low,
				Close:          c.Close,
				Ticks:          c.Ticks,
				Precision:      c.Precision,
			}
			open = true
			continue
		}
		if c.High > acc.High {
			acc.High = c.High
		}
		if c.Low < acc.Low {
			acc.Low = c.Low
		}
		acc.Close = c.Close
		acc.Ticks += c.Ticks
	}
	if open {
		out = append(out, acc)
	}
	return out
}

// -----------------------------------------------------------------------------

// AggregateQuotes keeps the last point of every bucketSecs-wide bucket, stamped
// with the bucket start. At or below one second the input is returned as is.
func AggregateQuotes(points []models.MQuotePoint, bucketSecs int64) []models.MQuotePoint {
	if bucketSecs <= NativeQuoteSecs || len(points) == 0 {
		return points
	}

	out := make([]models.MQuotePoint, 0, len(points))
	var last models.MQuotePoint
	open := false

	for _, p := range points {
		bucket := BucketStart(p.TsSec, bucketSecs)
		if open && bucket != last.TsSec {
			out = append(out, last)
		}
		last = models.MQuotePoint{TsSec: bucket, Price: p.Price}
		open = true
	}
	if open {
		out = append(out, last)
	}
	return out
}
