package calculator

import (
	"errors"

	"github.com/markcheno/go-talib"
)

// RSI returns the latest Wilder RSI of closes over period.
// Returns 50 when fewer than period+1 closes are available.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(closes) < period+1 {
		return 50.0, nil
	}
	series := talib.Rsi(closes, period)
	if len(series) == 0 {
		return 0, errors.New("rsi: talib output empty")
	}
	return series[len(series)-1], nil
}
