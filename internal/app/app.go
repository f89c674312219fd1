package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"CloseForecaster/internal/api"
	"CloseForecaster/internal/collector"
	"CloseForecaster/internal/config"
	"CloseForecaster/internal/forecast"
	"CloseForecaster/internal/inference"
	"CloseForecaster/internal/logger"
	"CloseForecaster/internal/notifier"
	"CloseForecaster/internal/scheduler"
)

// commandPoller answers chat commands until ctx is cancelled.
type commandPoller interface {
	StartPolling(ctx context.Context, handle notifier.CommandHandler)
}

// App wires configuration into the forecast pipeline and its surfaces.
type App struct {
	cfg        *config.Config
	Forecaster *forecast.Forecaster
	Server     *api.Server

	// DigestOnStart sends one digest as soon as Run starts. Needs EnableDigest.
	DigestOnStart bool

	notifier  commandPoller
	scheduler *scheduler.Scheduler
	log       zerolog.Logger
}

// New builds the application without starting anything. Telegram is only
// contacted when the digest is enabled.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	a := &App{cfg: cfg, log: logger.Component("app")}

	fetcher, err := NewFetcher(cfg)
	if err != nil {
		return nil, err
	}
	col := collector.NewCollector(fetcher, cfg.DataSource.Symbol, cfg.DataSource.LookbackDays, cfg.Model.SequenceLength)
	col.Retries = cfg.DataSource.Retries

	client, err := NewInferenceClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Forecaster = forecast.NewForecaster(col, client, cfg.Model.Horizon)

	page := api.PageInfo{
		Symbol:         cfg.DataSource.Symbol,
		Backend:        client.Name(),
		SequenceLength: cfg.Model.SequenceLength,
	}
	if cfg.Inference.Backend == "sagemaker" {
		page.Region = cfg.Inference.Region
	}
	a.Server, err = api.NewServer(a.Forecaster, api.Options{
		Addr:         cfg.Server.Addr,
		Horizon:      cfg.Model.Horizon,
		LegacyStatus: cfg.Server.LegacyStatus,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Page:         page,
	})
	if err != nil {
		return nil, fmt.Errorf("init http server: %w", err)
	}

	a.log.Info().
		Str("symbol", cfg.DataSource.Symbol).
		Str("data_source", fetcher.Name()).
		Str("inference", client.Name()).
		Str("response_schema", cfg.Inference.ResponseSchema).
		Int("sequence_length", cfg.Model.SequenceLength).
		Int("horizon", cfg.Model.Horizon).
		Msg("forecast pipeline ready")
	return a, nil
}

// NewFetcher selects the market data source.
func NewFetcher(cfg *config.Config) (collector.Fetcher, error) {
	switch cfg.DataSource.Provider {
	case "yahoo":
		return collector.NewYahooFetcher(cfg.Proxy, cfg.DataSource.Timeout), nil
	case "rest":
		return collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, cfg.DataSource.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported data source %q", cfg.DataSource.Provider)
	}
}

// NewInferenceClient builds the endpoint client for the configured backend and response schema.
func NewInferenceClient(ctx context.Context, cfg *config.Config) (*inference.EndpointClient, error) {
	decoder, err := inference.NewDecoder(cfg.Inference.ResponseSchema)
	if err != nil {
		return nil, err
	}
	var transport inference.Transport
	switch cfg.Inference.Backend {
	case "sagemaker":
		transport, err = inference.NewSageMakerTransport(ctx, cfg.Inference.Region, cfg.Inference.Endpoint, cfg.Inference.Timeout)
		if err != nil {
			return nil, err
		}
	case "http":
		transport = inference.NewHTTPTransport(cfg.Inference.URL, cfg.Proxy, cfg.Inference.Timeout)
	default:
		return nil, fmt.Errorf("unsupported inference backend %q", cfg.Inference.Backend)
	}
	client := inference.NewEndpointClient(transport, decoder, cfg.Model.SequenceLength)
	client.Retries = cfg.Inference.Retries
	return client, nil
}

// EnableDigest connects to Telegram and registers the scheduled digest.
func (a *App) EnableDigest(ctx context.Context) error {
	tn, err := notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy)
	if err != nil {
		return err
	}
	sched := scheduler.NewScheduler(ctx, a.Forecaster, tn, a.cfg.DataSource.Symbol, a.cfg.Model.Horizon)
	if err := sched.Register(a.cfg.Schedule.DigestCron); err != nil {
		return err
	}
	a.notifier = tn
	a.scheduler = sched
	return nil
}

// Run serves HTTP, and the digest when enabled, until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.Server.Start(ctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.scheduler != nil {
		a.scheduler.Start()
		group.Go(func() error {
			<-ctx.Done()
			a.scheduler.Stop()
			return nil
		})
		group.Go(func() error {
			a.notifier.StartPolling(ctx, a.scheduler.HandleCommand)
			return nil
		})
		if a.DigestOnStart {
			group.Go(func() error {
				a.scheduler.RunDigestNow(ctx)
				return nil
			})
		}
	} else if a.DigestOnStart {
		a.log.Warn().Msg("digest on start requested but digest is not enabled")
	}

	return group.Wait()
}

// RunDigestNow sends one digest immediately under ctx. EnableDigest must have succeeded.
func (a *App) RunDigestNow(ctx context.Context) error {
	if a.scheduler == nil {
		return fmt.Errorf("digest is not enabled")
	}
	a.scheduler.RunDigestNow(ctx)
	return nil
}
