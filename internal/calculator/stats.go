package calculator

import (
	"fmt"

	"CloseForecaster/internal/model"
)

const (
	shortPeriod = 20
	rsiPeriod   = 14
)

// WindowStats describes the input window a forecast started from.
type WindowStats struct {
	Last     float64 `json:"last_close"`
	SMA      float64 `json:"sma"`
	SMAShort float64 `json:"sma_20"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Position float64 `json:"position"`
	RSI      float64 `json:"rsi_14"`
}

// Summarize computes WindowStats. SMAShort falls back to the full-window
// average when the window is shorter than 20 prices.
func Summarize(w model.PriceWindow) (WindowStats, error) {
	if len(w) == 0 {
		return WindowStats{}, fmt.Errorf("summarize: empty window")
	}
	var st WindowStats
	var err error
	st.Last = w.Last()
	if st.SMA, err = SMA(w, len(w)); err != nil {
		return st, err
	}
	st.SMAShort = st.SMA
	if len(w) >= shortPeriod {
		if st.SMAShort, err = SMA(w, shortPeriod); err != nil {
			return st, err
		}
	}
	if st.High, st.Low, err = Range(w); err != nil {
		return st, err
	}
	if st.Position, err = Position(st.Last, st.High, st.Low); err != nil {
		return st, err
	}
	if st.RSI, err = RSI(w, rsiPeriod); err != nil {
		return st, err
	}
	return st, nil
}
