package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

// Config holds process configuration, loaded from environment variables.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	PayPal   PayPalConfig
	MailWizz MailWizzConfig
	Backfill BackfillConfig
	Tracing  TracingConfig
}

// PayPalConfig configures the PayPal REST reporting client.
type PayPalConfig struct {
	BaseURL      string `env:"PAYPAL_BASE_URL" envDefault:"https://api-m.paypal.com"`
	ClientID     string `env:"PAYPAL_CLIENT_ID"`
	ClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
}

// MailWizzConfig configures the MailWizz subscriber API client.
type MailWizzConfig struct {
	BaseURL string `env:"MAILWIZZ_BASE_URL"`
	APIKey  string `env:"MAILWIZZ_API_KEY"`
	ListUID string `env:"MAILWIZZ_LIST_UID"`
}

// BackfillConfig configures the offline lifetime-total recompute job.
type BackfillConfig struct {
	StartDate    string `env:"BACKFILL_START_DATE" envDefault:"2016-01-01"`
	Currency     string `env:"BACKFILL_CURRENCY" envDefault:"USD"`
	SnapshotDir  string `env:"BACKFILL_SNAPSHOT_DIR" envDefault:"."`
	PageSize     int    `env:"BACKFILL_PAGE_SIZE" envDefault:"100"`
	PushBatch    int    `env:"BACKFILL_PUSH_BATCH" envDefault:"25"`
	PagePauseMS  int    `env:"BACKFILL_PAGE_PAUSE_MS" envDefault:"500"`
	BatchPauseMS int    `env:"BACKFILL_BATCH_PAUSE_MS" envDefault:"2000"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled       bool    `env:"TRACING_ENABLED" envDefault:"false"`
	Endpoint      string  `env:"TRACING_ENDPOINT"`
	Protocol      string  `env:"TRACING_PROTOCOL" envDefault:"grpc"`
	SamplingRatio float64 `env:"TRACING_SAMPLING_RATIO" envDefault:"0.1"`
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

var Module = fx.Module("config",
	fx.Provide(Load),
)
