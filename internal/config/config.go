package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "STOREFRONT_"

type RateRule struct {
	Limit  int           `koanf:"limit"`
	Window time.Duration `koanf:"window"`
}

type Config struct {
	App struct {
		Name          string `koanf:"name"`
		Env           string `koanf:"env"`
		HTTPAddr      string `koanf:"http_addr"`
		PublicBaseURL string `koanf:"public_base_url"`
		FrontendURL   string `koanf:"frontend_url"`
		LogLevel      string `koanf:"log_level"`
		LogFile       string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
		CORSOrigins     []string      `koanf:"cors_origins"`
	} `koanf:"http"`

	Postgres struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
		AutoMigrate     bool          `koanf:"auto_migrate"`
	} `koanf:"postgres"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Ledger struct {
		Backend       string        `koanf:"backend"`
		TTL           time.Duration `koanf:"ttl"`
		SweepInterval time.Duration `koanf:"sweep_interval"`
	} `koanf:"ledger"`

	Flow struct {
		BaseURL               string        `koanf:"base_url"`
		APIKey                string        `koanf:"api_key"`
		Secret                string        `koanf:"secret"`
		CommerceID            string        `koanf:"commerce_id"`
		ConfirmationURL       string        `koanf:"confirmation_url"`
		ReturnURL             string        `koanf:"return_url"`
		Subject               string        `koanf:"subject"`
		Currency              string        `koanf:"currency"`
		FallbackEmail         string        `koanf:"fallback_email"`
		MinAmount             int64         `koanf:"min_amount"`
		AmountTolerance       int64         `koanf:"amount_tolerance"`
		Timeout               time.Duration `koanf:"timeout"`
		AllowUnsignedWebhooks bool          `koanf:"allow_unsigned_webhooks"`
	} `koanf:"flow"`

	Shipping struct {
		MetroFee            int64    `koanf:"metro_fee"`
		MetroRegions        []string `koanf:"metro_regions"`
		HomeDeliveryMethods []string `koanf:"home_delivery_methods"`
	} `koanf:"shipping"`

	Transfer struct {
		BankHolder    string `koanf:"bank_holder"`
		BankRUT       string `koanf:"bank_rut"`
		BankName      string `koanf:"bank_name"`
		AccountType   string `koanf:"account_type"`
		AccountNumber string `koanf:"account_number"`
		ContactEmail  string `koanf:"contact_email"`
	} `koanf:"transfer"`

	Mail struct {
		Provider       string        `koanf:"provider"`
		From           string        `koanf:"from"`
		FromName       string        `koanf:"from_name"`
		AppName        string        `koanf:"app_name"`
		SMTPHost       string        `koanf:"smtp_host"`
		SMTPPort       int           `koanf:"smtp_port"`
		SMTPUser       string        `koanf:"smtp_user"`
		SMTPPassword   string        `koanf:"smtp_password"`
		SMTPUseSSL     bool          `koanf:"smtp_use_ssl"`
		SendGridAPIKey string        `koanf:"sendgrid_api_key"`
		ResendAPIKey   string        `koanf:"resend_api_key"`
		TestKey        string        `koanf:"test_key"`
		ResetTokenTTL  time.Duration `koanf:"reset_token_ttl"`
		ResetPageURL   string        `koanf:"reset_page_url"`
	} `koanf:"mail"`

	Admin struct {
		Key string `koanf:"key"`
	} `koanf:"admin"`

	Kafka struct {
		Brokers     []string `koanf:"brokers"`
		TopicEvents string   `koanf:"topic_events"`
	} `koanf:"kafka"`

	Events struct {
		Buffer int `koanf:"buffer"`
	} `koanf:"events"`

	RateLimit struct {
		Enabled  bool     `koanf:"enabled"`
		API      RateRule `koanf:"api"`
		Webhook  RateRule `koanf:"webhook"`
		Payments RateRule `koanf:"payments"`
		Recovery RateRule `koanf:"recovery"`
	} `koanf:"rate_limit"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"app.name":                      "storefront",
		"app.env":                       "development",
		"app.http_addr":                 ":3000",
		"app.public_base_url":           "http://localhost:3000",
		"app.frontend_url":              "http://localhost:5500",
		"app.log_level":                 "info",
		"http.read_timeout":             10 * time.Second,
		"http.write_timeout":            20 * time.Second,
		"http.idle_timeout":             60 * time.Second,
		"http.shutdown_timeout":         10 * time.Second,
		"postgres.max_open_conns":       10,
		"postgres.max_idle_conns":       5,
		"postgres.conn_max_lifetime":    30 * time.Minute,
		"postgres.auto_migrate":         true,
		"ledger.backend":                "memory",
		"ledger.ttl":                    10 * time.Minute,
		"ledger.sweep_interval":         5 * time.Minute,
		"flow.base_url":                 "https://sandbox.flow.cl/api",
		"flow.subject":                  "Compra Mision3D",
		"flow.currency":                 "CLP",
		"flow.fallback_email":           "cliente@example.com",
		"flow.min_amount":               350,
		"flow.amount_tolerance":         1,
		"flow.timeout":                  15 * time.Second,
		"shipping.metro_fee":            2990,
		"shipping.metro_regions":        []string{"MetroRegion", "Region Metropolitana de Santiago"},
		"shipping.home_delivery_methods": []string{"domicilio", "santiago", "home-delivery"},
		"mail.provider":                 "auto",
		"mail.from_name":                "Mision3D",
		"mail.app_name":                 "Mision3D",
		"mail.smtp_port":                587,
		"mail.reset_token_ttl":          time.Hour,
		"events.buffer":                 256,
		"kafka.topic_events":            "storefront.order-events",
		"rate_limit.enabled":            true,
		"rate_limit.api.limit":          100,
		"rate_limit.api.window":         15 * time.Minute,
		"rate_limit.webhook.limit":      10,
		"rate_limit.webhook.window":     time.Minute,
		"rate_limit.payments.limit":     20,
		"rate_limit.payments.window":    5 * time.Minute,
		"rate_limit.recovery.limit":     5,
		"rate_limit.recovery.window":    15 * time.Minute,
	}
}

// legacyEnv maps the flat variable names used by older deployments onto config keys.
var legacyEnv = map[string]string{
	"PORT":               "app.http_addr",
	"NODE_ENV":           "app.env",
	"BACKEND_URL":        "app.public_base_url",
	"FRONTEND_URL":       "app.frontend_url",
	"DATABASE_URL":       "postgres.dsn",
	"REDIS_URL":          "redis.addr",
	"FLOW_API_URL":       "flow.base_url",
	"FLOW_API_KEY":       "flow.api_key",
	"FLOW_SECRET_KEY":    "flow.secret",
	"FLOW_COMMERCE_ID":   "flow.commerce_id",
	"FLOW_RETURN_URL":    "flow.return_url",
	"FLOW_CONFIRM_URL":   "flow.confirmation_url",
	"ADMIN_KEY":          "admin.key",
	"EMAIL_PROVIDER":     "mail.provider",
	"EMAIL_FROM":         "mail.from",
	"SMTP_HOST":          "mail.smtp_host",
	"SMTP_PORT":          "mail.smtp_port",
	"SMTP_USER":          "mail.smtp_user",
	"SMTP_PASS":          "mail.smtp_password",
	"SMTP_SECURE":        "mail.smtp_use_ssl",
	"SENDGRID_API_KEY":   "mail.sendgrid_api_key",
	"RESEND_API_KEY":     "mail.resend_api_key",
	"TEST_EMAIL_KEY":     "mail.test_key",
	"BANK_HOLDER":        "transfer.bank_holder",
	"BANK_RUT":           "transfer.bank_rut",
	"BANK_NAME":          "transfer.bank_name",
	"BANK_ACCOUNT_TYPE":  "transfer.account_type",
	"BANK_ACCOUNT":       "transfer.account_number",
	"BANK_CONTACT_EMAIL": "transfer.contact_email",
}

func legacyOverlay() map[string]interface{} {
	out := map[string]interface{}{}
	for name, key := range legacyEnv {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		if name == "PORT" {
			if _, err := strconv.Atoi(v); err == nil {
				v = ":" + v
			}
		}
		out[key] = v
	}
	return out
}

// Load layers defaults, the optional YAML file, legacy variables and STOREFRONT_ variables.
// Nested keys use a double underscore, e.g. STOREFRONT_FLOW__API_KEY.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(confmap.Provider(legacyOverlay(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("legacy overlay: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn required")
	}
	if c.Flow.APIKey == "" || c.Flow.Secret == "" {
		return fmt.Errorf("flow.api_key and flow.secret required")
	}
	if c.Flow.BaseURL == "" {
		return fmt.Errorf("flow.base_url required")
	}
	if c.Flow.AmountTolerance < 0 {
		return fmt.Errorf("flow.amount_tolerance must be >= 0")
	}
	if c.Flow.MinAmount < 0 {
		return fmt.Errorf("flow.min_amount must be >= 0")
	}
	switch c.Ledger.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr required when ledger.backend is redis")
		}
	default:
		return fmt.Errorf("ledger.backend must be memory or redis, got %q", c.Ledger.Backend)
	}
	if c.Ledger.TTL <= 0 {
		return fmt.Errorf("ledger.ttl must be positive")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}
