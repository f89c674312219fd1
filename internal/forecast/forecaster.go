package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"CloseForecaster/internal/inference"
	"CloseForecaster/internal/logger"
	"CloseForecaster/internal/model"
)

// ErrInvalidHorizon is returned by Next for a non-positive day count.
var ErrInvalidHorizon = errors.New("horizon must be positive")

// WindowSource yields the current input window. *collector.Collector satisfies it.
type WindowSource interface {
	Window(ctx context.Context) (model.PriceWindow, error)
}

// Forecaster runs single-step and iterated multi-step forecasts.
type Forecaster struct {
	source  WindowSource
	client  inference.Client
	Horizon int

	log zerolog.Logger
}

func NewForecaster(source WindowSource, client inference.Client, horizon int) *Forecaster {
	return &Forecaster{
		source:  source,
		client:  client,
		Horizon: horizon,
		log:     logger.Component("forecast"),
	}
}

// Result carries a forecast together with the window it started from.
type Result struct {
	Window      model.PriceWindow
	Predictions model.ForecastSequence
}

// Today predicts the next close from the latest window.
func (f *Forecaster) Today(ctx context.Context) (model.Prediction, error) {
	window, err := f.source.Window(ctx)
	if err != nil {
		return model.Prediction{}, err
	}
	return f.client.Predict(ctx, window)
}

// Next predicts h consecutive closes, feeding each prediction back into the window.
func (f *Forecaster) Next(ctx context.Context, h int) (model.ForecastSequence, error) {
	res, err := f.Run(ctx, h)
	if err != nil {
		return nil, err
	}
	return res.Predictions, nil
}

// Run is Next that also returns the starting window.
func (f *Forecaster) Run(ctx context.Context, h int) (*Result, error) {
	if h <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, h)
	}
	window, err := f.source.Window(ctx)
	if err != nil {
		return nil, err
	}
	seq, err := f.iterate(ctx, window, h)
	if err != nil {
		return nil, err
	}
	return &Result{Window: window, Predictions: seq}, nil
}

func (f *Forecaster) iterate(ctx context.Context, window model.PriceWindow, h int) (model.ForecastSequence, error) {
	start := time.Now()
	seq := make(model.ForecastSequence, 0, h)
	current := window
	for day := 1; day <= h; day++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("forecast aborted at day %d: %w", day, err)
		}
		pred, err := f.client.Predict(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("day %d of %d: %w", day, h, err)
		}
		price, err := pred.Price()
		if err != nil {
			return nil, fmt.Errorf("day %d of %d: %w", day, h, err)
		}
		seq = append(seq, pred)
		current = current.Slide(price)
	}
	f.log.Info().
		Int("days", h).
		Str("backend", f.client.Name()).
		Dur("took", time.Since(start)).
		Msg("multi-step forecast done")
	return seq, nil
}
