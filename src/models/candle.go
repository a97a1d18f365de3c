package models

// MillisThreshold separates millisecond timestamps from second timestamps.
const MillisThreshold = 1_000_000_000_000

// MCandle is one fixed-width OHLC bucket. BucketStartSec is always in seconds.
type MCandle struct {
	BucketStartSec int64    `json:"bucketStartSec"`
	Open           float64  `json:"open"`
	High           float64  `json:"high"`
	Low            float64  `json:"low"`
	Close          float64  `json:"close"`
	Ticks          int64    `json:"ticks"`
	Precision      *float64 `json:"precision,omitempty"`
}

// -----------------------------------------------------------------------------

// ToSec normalizes a unix timestamp that may be expressed in milliseconds.
func ToSec(ts int64) int64 {
	if ts > MillisThreshold {
		return ts / 1000
	}
	return ts
}
