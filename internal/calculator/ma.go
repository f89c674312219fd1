package calculator

import (
	"errors"
)

// SMA computes the simple moving average of the last period prices.
func SMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), nil
}

// ChangePct returns the relative change from base to price, in percent.
func ChangePct(base, price float64) float64 {
	if base == 0 {
		return 0
	}
	return (price - base) / base * 100
}
