package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"CloseForecaster/internal/calculator"
	"CloseForecaster/internal/forecast"
	"CloseForecaster/internal/logger"
	"CloseForecaster/internal/model"
	"CloseForecaster/internal/notifier"
)

const sendRetries = 3

// Forecaster is the part of *forecast.Forecaster the digest uses.
type Forecaster interface {
	Today(ctx context.Context) (model.Prediction, error)
	Run(ctx context.Context, h int) (*forecast.Result, error)
}

// Notifier delivers formatted messages.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs the forecast digest on a cron schedule and answers chat commands.
type Scheduler struct {
	Cron       *cron.Cron
	Forecaster Forecaster
	Notifier   Notifier
	Symbol     string
	Horizon    int
	// Ctx bounds digests fired by cron. It is fixed at construction.
	Ctx        context.Context

	now func() time.Time
	log zerolog.Logger
}

// NewScheduler creates a new Scheduler. Cron specs carry a seconds field.
func NewScheduler(ctx context.Context, f Forecaster, n Notifier, symbol string, horizon int) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Forecaster: f,
		Notifier:   n,
		Symbol:     symbol,
		Horizon:    horizon,
		Ctx:        ctx,
		now:        time.Now,
		log:        logger.Component("scheduler"),
	}
}

// Register adds the digest job.
func (s *Scheduler) Register(digestCron string) error {
	if _, err := s.Cron.AddFunc(digestCron, s.digestTask); err != nil {
		return fmt.Errorf("register digest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running digest to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunDigestNow executes the digest immediately under ctx.
func (s *Scheduler) RunDigestNow(ctx context.Context) {
	s.runDigest(ctx)
}

func (s *Scheduler) digestTask() {
	s.runDigest(s.Ctx)
}

func (s *Scheduler) runDigest(ctx context.Context) {
	s.log.Info().Str("symbol", s.Symbol).Int("days", s.Horizon).Msg("running forecast digest")
	msg, err := s.digest(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("forecast digest")
		s.trySend(ctx, notifier.FormatFailure(s.Symbol, err))
		return
	}
	s.trySend(ctx, msg)
}

func (s *Scheduler) digest(ctx context.Context) (string, error) {
	res, err := s.Forecaster.Run(ctx, s.Horizon)
	if err != nil {
		return "", err
	}
	st, err := calculator.Summarize(res.Window)
	if err != nil {
		return "", err
	}
	return notifier.FormatForecastDigest(s.Symbol, st, res.Predictions, s.now()), nil
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch command {
	case "/hoje", "hoje":
		pred, err := s.Forecaster.Today(ctx)
		if err != nil {
			return notifier.FormatFailure(s.Symbol, err)
		}
		return notifier.FormatToday(s.Symbol, pred)
	case "/proximos", "proximos":
		msg, err := s.digest(ctx)
		if err != nil {
			return notifier.FormatFailure(s.Symbol, err)
		}
		return msg
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if err := s.Notifier.SendWithRetry(ctx, text, sendRetries); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}
