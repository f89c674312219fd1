package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Closes returns the closing prices of bars that carry one, in input order.
// A zero close marks a missing value (null in the provider payload).
func Closes(bars []OHLCV) []float64 {
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Close == 0 {
			continue
		}
		closes = append(closes, b.Close)
	}
	return closes
}
