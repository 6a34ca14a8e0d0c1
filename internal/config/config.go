// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	BaseURL        string        `yaml:"base_url"`        // public origin, e.g. https://paywall.example
	ReturnPath     string        `yaml:"return_path"`     // where the provider sends the payer back
	WebhookPath    string        `yaml:"webhook_path"`    // provider notifications (IPN)
	PurchasesPath  string        `yaml:"purchases_path"`  // "my purchases" view of the front end
	CheckoutPath   string        `yaml:"checkout_path"`   // front-end page to retry a checkout
	SupportURL     string        `yaml:"support_url"`     // where partial activations are sent
	RedirectDelay  time.Duration `yaml:"redirect_delay"`  // auto-navigation delay after success
	RequestTimeout time.Duration `yaml:"request_timeout"` // per-request context deadline
	Language       string        `yaml:"language"`        // en | fr
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // lifetime of stashed checkout state
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	CookieName   string        `yaml:"cookie_name"`
	CookieDomain string        `yaml:"cookie_domain"`
	SecureCookie bool          `yaml:"secure_cookie"`
	TTL          time.Duration `yaml:"ttl"`
}

type PaymentConfig struct {
	Provider      string        `yaml:"provider"` // mobilemoney | noop
	BaseURL       string        `yaml:"base_url"`
	MerchantKey   string        `yaml:"merchant_key"`
	Secret        string        `yaml:"secret"`         // signs outgoing requests
	WebhookSecret string        `yaml:"webhook_secret"` // verifies IPN bodies
	Currency      string        `yaml:"currency"`
	ActivationFee int64         `yaml:"activation_fee"` // minor units
	PollTimeout   time.Duration `yaml:"poll_timeout"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
}

type CheckoutConfig struct {
	SessionCookie string `yaml:"session_cookie"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Payment  PaymentConfig  `yaml:"payment"`
	Checkout CheckoutConfig `yaml:"checkout"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. Values may reference environment
// variables as ${NAME}; a .env file next to the binary is loaded first when present.
func LoadConfig(path string, dev bool) (*Config, error) {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b, dev)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse expands environment references, applies defaults and validates.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if !dev {
		if cfg.Auth.JWTSecret == "" {
			return nil, errors.New("auth.jwt_secret is required")
		}
		if cfg.Payment.Provider != "noop" && cfg.Payment.BaseURL == "" {
			return nil, errors.New("payment.base_url is required")
		}
	}
	if cfg.Payment.ActivationFee < 0 {
		return nil, errors.New("payment.activation_fee must not be negative")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")
	if cfg.Server.ReturnPath == "" {
		cfg.Server.ReturnPath = "/payment/return"
	}
	if cfg.Server.WebhookPath == "" {
		cfg.Server.WebhookPath = "/webhook/payment"
	}
	if cfg.Server.PurchasesPath == "" {
		cfg.Server.PurchasesPath = "/my-purchases"
	}
	if cfg.Server.CheckoutPath == "" {
		cfg.Server.CheckoutPath = "/"
	}
	if cfg.Server.SupportURL == "" {
		cfg.Server.SupportURL = "/support"
	}
	if cfg.Server.RedirectDelay <= 0 {
		cfg.Server.RedirectDelay = 3 * time.Second
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 15 * time.Second
	}
	if cfg.Server.Language == "" {
		cfg.Server.Language = "en"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "session"
	}
	if cfg.Auth.TTL <= 0 {
		cfg.Auth.TTL = 24 * time.Hour
	}
	if cfg.Auth.JWTSecret == "" && cfg.Runtime.Dev {
		cfg.Auth.JWTSecret = "dev-only-secret"
	}
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "mobilemoney"
		if cfg.Runtime.Dev {
			cfg.Payment.Provider = "noop"
		}
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "XOF"
	}
	if cfg.Payment.PollTimeout <= 0 {
		cfg.Payment.PollTimeout = 5 * time.Second
	}
	if cfg.Payment.HTTPTimeout <= 0 {
		cfg.Payment.HTTPTimeout = 10 * time.Second
	}
	if cfg.Checkout.SessionCookie == "" {
		cfg.Checkout.SessionCookie = "checkout_session"
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Minute
	}
	return d
}
