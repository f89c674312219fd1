package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"CloseForecaster/internal/api"
	"CloseForecaster/internal/app"
	"CloseForecaster/internal/calculator"
	"CloseForecaster/internal/config"
	"CloseForecaster/internal/logger"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "forecaster",
		Short:         "Closing price forecasts from a hosted LSTM model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := loaded.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}
			logger.Setup(loaded.Log.Level, loaded.Log.Format)
			cfg = loaded
			return nil
		},
	}

	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultPath, "Configuration file path")

	rootCmd.AddCommand(newServeCmd(&cfg))
	rootCmd.AddCommand(newPredictCmd(&cfg))
	return rootCmd
}

func newServeCmd(cfg **config.Config) *cobra.Command {
	var digestNow bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when configured, the Telegram digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *cfg, digestNow)
		},
	}
	cmd.Flags().BoolVar(&digestNow, "digest-now", os.Getenv("RUN_ON_START") == "true", "Send one digest right after start")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, digestNow bool) error {
	log.Info().Msg("CloseForecaster starting...")
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("init")
		return err
	}
	if cfg.DigestEnabled() {
		if err := a.EnableDigest(ctx); err != nil {
			log.Error().Err(err).Msg("init digest")
			return err
		}
		log.Info().Str("cron", cfg.Schedule.DigestCron).Msg("telegram digest enabled")
		a.DigestOnStart = digestNow
	}

	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("stopped with error")
		return err
	}
	log.Info().Msg("CloseForecaster stopped")
	return nil
}

func newPredictCmd(cfg **config.Config) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run one multi-day forecast and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if days == 0 {
				days = c.Model.Horizon
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, c)
			if err != nil {
				return err
			}
			res, err := a.Forecaster.Run(ctx, days)
			if err != nil {
				_ = json.NewEncoder(cmd.ErrOrStderr()).Encode(map[string]string{"erro": err.Error()})
				return err
			}
			stats, err := calculator.Summarize(res.Window)
			if err != nil {
				return err
			}
			out := map[string]any{
				"symbol":             c.DataSource.Symbol,
				"janela":             stats,
				api.HorizonKey(days): res.Predictions,
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Number of days to forecast (defaults to model.horizon)")
	return cmd
}
