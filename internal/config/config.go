// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"` // webhook + checkout listener
}

type AdminConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"` // env: ADMIN_JWT_SECRET
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // env: DATABASE_URL
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // catalog cache TTL
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`     // env: STRIPE_SECRET_KEY
	WebhookSecret string `yaml:"webhook_secret"` // env: STRIPE_WEBHOOK_SECRET
}

type PayPalConfig struct {
	ClientID     string `yaml:"client_id"`     // env: PAYPAL_CLIENT_ID
	ClientSecret string `yaml:"client_secret"` // env: PAYPAL_CLIENT_SECRET
	WebhookID    string `yaml:"webhook_id"`    // env: PAYPAL_WEBHOOK_ID
	Sandbox      bool   `yaml:"sandbox"`
}

type PaymentConfig struct {
	Stripe          StripeConfig  `yaml:"stripe"`
	PayPal          PayPalConfig  `yaml:"paypal"`
	SuccessURL      string        `yaml:"success_url"` // template, {PAYMENT_ID} substituted
	CancelURL       string        `yaml:"cancel_url"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"` // bound on outbound provider calls
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type AlertConfig struct {
	TelegramToken string `yaml:"telegram_token"` // env: ALERT_TELEGRAM_TOKEN
	ChatID        int64  `yaml:"chat_id"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Admin      AdminConfig      `yaml:"admin"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Payment    PaymentConfig    `yaml:"payment"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Alert      AlertConfig      `yaml:"alert"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, applies environment overrides for secrets,
// fills defaults, and validates. A missing provider credential or webhook
// secret is a fatal configuration error, not something discovered at the
// first webhook.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Secrets prefer the environment over the file.
	overrideEnv(&cfg.Database.URL, "DATABASE_URL")
	overrideEnv(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	overrideEnv(&cfg.Payment.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	overrideEnv(&cfg.Payment.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	overrideEnv(&cfg.Payment.PayPal.ClientID, "PAYPAL_CLIENT_ID")
	overrideEnv(&cfg.Payment.PayPal.ClientSecret, "PAYPAL_CLIENT_SECRET")
	overrideEnv(&cfg.Payment.PayPal.WebhookID, "PAYPAL_WEBHOOK_ID")
	overrideEnv(&cfg.Alert.TelegramToken, "ALERT_TELEGRAM_TOKEN")

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8081
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Payment.ProviderTimeout <= 0 {
		cfg.Payment.ProviderTimeout = 30 * time.Second
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.Payment.Stripe.SecretKey == "" {
		return errors.New("payment.stripe.secret_key is required")
	}
	if c.Payment.Stripe.WebhookSecret == "" {
		return errors.New("payment.stripe.webhook_secret is required")
	}
	if c.Payment.PayPal.ClientID == "" || c.Payment.PayPal.ClientSecret == "" {
		return errors.New("payment.paypal client credentials are required")
	}
	if c.Payment.PayPal.WebhookID == "" {
		return errors.New("payment.paypal.webhook_id is required")
	}
	if c.Payment.SuccessURL == "" || c.Payment.CancelURL == "" {
		return errors.New("payment.success_url and payment.cancel_url are required")
	}
	if c.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required")
	}
	return nil
}

func overrideEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
