package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Game    GameConfig    `yaml:"game"`
	Trading TradingConfig `yaml:"trading"`
	Pricing PricingConfig `yaml:"pricing"`
	Storage StorageConfig `yaml:"storage"`
	Retry   RetryConfig   `yaml:"retry"`
	Log     LogConfig     `yaml:"log"`
}

// GameConfig contiene las reglas de la ronda. Todos los valores monetarios son centavos.
type GameConfig struct {
	MinBetCents      int64   `yaml:"min_bet_cents"`
	MaxItemsPerTrade int     `yaml:"max_items_per_trade"`
	MaxItemsTotal    int     `yaml:"max_items_total"`
	MaxItemsPerUser  int     `yaml:"max_items_per_user"`
	LockSeconds      int     `yaml:"lock_seconds"`
	FeePercent       float64 `yaml:"fee_percent"`
	MinBettors       int     `yaml:"min_bettors"`
}

// TradingConfig apunta al sidecar del gateway de trades.
type TradingConfig struct {
	GatewayBase      string   `yaml:"gateway_base"`
	GatewayToken     string   `yaml:"gateway_token"` // normalmente desde GATEWAY_TOKEN
	CatalogID        string   `yaml:"catalog_id"`
	AdminIDs         []string `yaml:"admin_ids"`
	PollSeconds      int      `yaml:"poll_seconds"`
	ReconcileSeconds int      `yaml:"reconcile_seconds"`
}

// PricingConfig controla la caché de valuaciones.
type PricingConfig struct {
	RefreshSeconds   int `yaml:"refresh_seconds"`
	FreshnessSeconds int `yaml:"freshness_seconds"`
	MinLiquidity     int `yaml:"min_liquidity"`
}

// StorageConfig controla dónde se persisten las rondas.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta del archivo sqlite, o ":memory:"
}

// RetryConfig acota los reintentos ante fallos transitorios de trading.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BackoffMS   int `yaml:"backoff_ms"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML para secretos y logging.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LockDuration devuelve la cuenta atrás de la ronda bloqueada.
func (c *Config) LockDuration() time.Duration {
	return time.Duration(c.Game.LockSeconds) * time.Second
}

// PollInterval devuelve la cadencia de sondeo de ofertas entrantes.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Trading.PollSeconds) * time.Second
}

// ReconcileInterval devuelve la cadencia de revisión de la cola de confirmación.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Trading.ReconcileSeconds) * time.Second
}

// PriceRefresh devuelve la cadencia de refresco de valuaciones.
func (c *Config) PriceRefresh() time.Duration {
	return time.Duration(c.Pricing.RefreshSeconds) * time.Second
}

// PriceFreshness devuelve la antigüedad máxima de una valuación antes de considerarse vieja.
func (c *Config) PriceFreshness() time.Duration {
	return time.Duration(c.Pricing.FreshnessSeconds) * time.Second
}

// RetryBackoff devuelve la espera fija entre reintentos.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Retry.BackoffMS) * time.Millisecond
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GATEWAY_TOKEN"); v != "" {
		cfg.Trading.GatewayToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Game.MinBetCents <= 0 {
		cfg.Game.MinBetCents = 50
	}
	if cfg.Game.MaxItemsPerTrade <= 0 {
		cfg.Game.MaxItemsPerTrade = 10
	}
	if cfg.Game.MaxItemsTotal <= 0 {
		cfg.Game.MaxItemsTotal = 100
	}
	if cfg.Game.MaxItemsPerUser <= 0 {
		cfg.Game.MaxItemsPerUser = 30
	}
	if cfg.Game.LockSeconds <= 0 {
		cfg.Game.LockSeconds = 120
	}
	if cfg.Game.FeePercent <= 0 {
		cfg.Game.FeePercent = 0.05
	}
	if cfg.Game.MinBettors <= 0 {
		cfg.Game.MinBettors = 2
	}
	if cfg.Trading.GatewayBase == "" {
		cfg.Trading.GatewayBase = "http://127.0.0.1:7030"
	}
	if cfg.Trading.CatalogID == "" {
		cfg.Trading.CatalogID = "570"
	}
	if cfg.Trading.PollSeconds <= 0 {
		cfg.Trading.PollSeconds = 10
	}
	if cfg.Trading.ReconcileSeconds <= 0 {
		cfg.Trading.ReconcileSeconds = 60
	}
	if cfg.Pricing.RefreshSeconds <= 0 {
		cfg.Pricing.RefreshSeconds = 900
	}
	if cfg.Pricing.FreshnessSeconds <= 0 {
		cfg.Pricing.FreshnessSeconds = 3600
	}
	if cfg.Pricing.MinLiquidity <= 0 {
		cfg.Pricing.MinLiquidity = 3
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "potbot.db"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BackoffMS <= 0 {
		cfg.Retry.BackoffMS = 2000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func validate(cfg *Config) error {
	if cfg.Game.FeePercent >= 1 {
		return fmt.Errorf("config.Load: fee_percent %.2f must be below 1", cfg.Game.FeePercent)
	}
	if cfg.Game.MinBettors < 2 {
		return fmt.Errorf("config.Load: min_bettors must be at least 2")
	}
	return nil
}
