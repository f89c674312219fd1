package model

import (
	"fmt"
	"math"
)

// PriceWindow is the ordered (oldest first) input sequence sent to the model.
type PriceWindow []float64

// Slide returns a new window with the oldest price dropped and next appended.
func (w PriceWindow) Slide(next float64) PriceWindow {
	if len(w) == 0 {
		return PriceWindow{}
	}
	out := make(PriceWindow, 0, len(w))
	out = append(out, w[1:]...)
	return append(out, next)
}

// Last returns the newest price in the window, or 0 for an empty window.
func (w PriceWindow) Last() float64 {
	if len(w) == 0 {
		return 0
	}
	return w[len(w)-1]
}

// Prediction is the model output for one forecasted day.
type Prediction struct {
	PredictedPrice float64 `json:"predicted_price"`
}

// Price returns the numeric price used to extend the window.
func (p Prediction) Price() (float64, error) {
	if math.IsNaN(p.PredictedPrice) || math.IsInf(p.PredictedPrice, 0) {
		return 0, fmt.Errorf("%w: predicted_price is not a finite number", ErrWindowUpdate)
	}
	return p.PredictedPrice, nil
}

// ForecastSequence holds one prediction per requested day, in call order.
type ForecastSequence []Prediction
