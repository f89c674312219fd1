package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"CloseForecaster/internal/logger"
	"CloseForecaster/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price     float64
	DailyData []model.OHLCV
	Err       error

	Calls      int
	LastSymbol string
	LastStart  time.Time
	LastEnd    time.Time
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, symbol string, start, end time.Time) ([]model.OHLCV, error) {
	m.Calls++
	m.LastSymbol, m.LastStart, m.LastEnd = symbol, start, end
	if m.Err != nil {
		return nil, m.Err
	}
	if m.DailyData != nil {
		return m.DailyData, nil
	}
	return generateMockBars(m.Price, int(end.Sub(start).Hours()/24)), nil
}

func generateMockBars(basePrice float64, count int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   time.Now().AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// Collector turns raw daily bars into the model's input window.
type Collector struct {
	Fetcher        Fetcher
	Symbol         string
	LookbackDays   int
	SequenceLength int
	// Retries bounds extra attempts on fetch errors. Zero means a single attempt.
	Retries int

	now        func() time.Time
	newBackOff func() backoff.BackOff
	log        zerolog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, symbol string, lookbackDays, sequenceLength int) *Collector {
	return &Collector{
		Fetcher:        fetcher,
		Symbol:         symbol,
		LookbackDays:   lookbackDays,
		SequenceLength: sequenceLength,
		now:            time.Now,
		newBackOff:     func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		log:            logger.Component("collector"),
	}
}

// Window fetches [today-lookback, today) and returns the SequenceLength closes
// preceding the most recent one, which is dropped as a possibly partial day.
func (c *Collector) Window(ctx context.Context) (model.PriceWindow, error) {
	today := truncateDay(c.now())
	start := today.AddDate(0, 0, -c.LookbackDays)

	var bars []model.OHLCV
	fetch := func() error {
		var err error
		bars, err = c.Fetcher.FetchDailyBars(ctx, c.Symbol, start, today)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.Retries)), ctx)
	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Dur("retry_in", wait).Str("source", c.Fetcher.Name()).Msg("fetch daily bars failed")
	}
	if err := backoff.RetryNotify(fetch, policy, notify); err != nil {
		return nil, fmt.Errorf("%w: fetch %s from %s: %w", model.ErrDataUnavailable, c.Symbol, c.Fetcher.Name(), err)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars returned for %s", model.ErrDataUnavailable, c.Symbol)
	}
	closes := model.Closes(bars)
	if len(closes) == 0 {
		return nil, fmt.Errorf("%w: no closing prices for %s", model.ErrDataUnavailable, c.Symbol)
	}

	n := c.SequenceLength
	if len(closes) < n+1 {
		return nil, fmt.Errorf("%w: %d closes available, need %d for a sequence of %d",
			model.ErrInsufficientData, len(closes), n+1, n)
	}

	window := make(model.PriceWindow, n)
	copy(window, closes[len(closes)-n-1:len(closes)-1])

	c.log.Debug().
		Str("symbol", c.Symbol).
		Int("bars", len(bars)).
		Int("closes", len(closes)).
		Float64("last_close", window.Last()).
		Msg("window ready")
	return window, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
