package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr         string        `yaml:"addr"`
		LegacyStatus bool          `yaml:"legacy_status"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`
	DataSource struct {
		Provider     string        `yaml:"provider"`
		Symbol       string        `yaml:"symbol"`
		BaseURL      string        `yaml:"base_url"`
		APIKey       string        `yaml:"api_key"`
		LookbackDays int           `yaml:"lookback_days"`
		Retries      int           `yaml:"retries"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"data_source"`
	Model struct {
		SequenceLength int `yaml:"sequence_length"`
		Horizon        int `yaml:"horizon"`
	} `yaml:"model"`
	Inference struct {
		Backend        string        `yaml:"backend"`
		Region         string        `yaml:"region"`
		Endpoint       string        `yaml:"endpoint"`
		URL            string        `yaml:"url"`
		ResponseSchema string        `yaml:"response_schema"`
		Timeout        time.Duration `yaml:"timeout"`
		Retries        int           `yaml:"retries"`
	} `yaml:"inference"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		DigestCron string `yaml:"digest_cron"`
	} `yaml:"schedule"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment variable overrides.
// A missing file is not an error: defaults and the environment are enough to run.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SYMBOL"); v != "" {
		cfg.DataSource.Symbol = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("SAGEMAKER_ENDPOINT"); v != "" {
		cfg.Inference.Endpoint = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Inference.Region = v
	}
	if v := os.Getenv("INFERENCE_URL"); v != "" {
		cfg.Inference.URL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("DIGEST_CRON"); v != "" {
		cfg.Schedule.DigestCron = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 2 * time.Minute
	}
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "yahoo"
	}
	if cfg.DataSource.Symbol == "" {
		cfg.DataSource.Symbol = "ITUB4.SA"
	}
	if cfg.DataSource.LookbackDays == 0 {
		cfg.DataSource.LookbackDays = 90
	}
	if cfg.DataSource.Timeout == 0 {
		cfg.DataSource.Timeout = 30 * time.Second
	}
	if cfg.Model.SequenceLength == 0 {
		cfg.Model.SequenceLength = 60
	}
	if cfg.Model.Horizon == 0 {
		cfg.Model.Horizon = 5
	}
	if cfg.Inference.Backend == "" {
		cfg.Inference.Backend = "sagemaker"
	}
	if cfg.Inference.Region == "" {
		cfg.Inference.Region = "us-east-2"
	}
	if cfg.Inference.Endpoint == "" {
		cfg.Inference.Endpoint = "tensorflow-inference-2025-07-26-19-17-42-056"
	}
	if cfg.Inference.ResponseSchema == "" {
		cfg.Inference.ResponseSchema = "object.v1"
	}
	if cfg.Inference.Timeout == 0 {
		cfg.Inference.Timeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case "yahoo":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	if c.DataSource.Symbol == "" {
		return fmt.Errorf("data_source.symbol is required")
	}
	if c.Model.SequenceLength <= 0 {
		return fmt.Errorf("model.sequence_length must be positive")
	}
	if c.Model.Horizon <= 0 {
		return fmt.Errorf("model.horizon must be positive")
	}
	// Calendar days must at least cover the trading days the window needs.
	if c.DataSource.LookbackDays <= c.Model.SequenceLength {
		return fmt.Errorf("data_source.lookback_days (%d) must exceed model.sequence_length (%d)",
			c.DataSource.LookbackDays, c.Model.SequenceLength)
	}
	if c.DataSource.Retries < 0 || c.Inference.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	switch c.Inference.Backend {
	case "sagemaker":
		if c.Inference.Endpoint == "" || c.Inference.Region == "" {
			return fmt.Errorf("inference.endpoint and inference.region are required for sagemaker")
		}
	case "http":
		if c.Inference.URL == "" {
			return fmt.Errorf("inference.url is required for the http backend")
		}
	default:
		return fmt.Errorf("inference.backend %q is not supported", c.Inference.Backend)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// DigestEnabled reports whether the scheduled Telegram digest should run.
func (c *Config) DigestEnabled() bool {
	return c.Schedule.DigestCron != "" && c.Telegram.BotToken != "" && c.Telegram.ChatID != 0
}
