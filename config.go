package auth

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds every tunable of the module
type Config struct {
	Issuer              string        `yaml:"issuer" env:"MARKET_AUTH_ISSUER" env-default:"marketplace"`
	SigningKey          string        `yaml:"signing_key" env:"MARKET_AUTH_SIGNING_KEY" env-required:"true"`
	PreviousSigningKeys []string      `yaml:"previous_signing_keys" env:"MARKET_AUTH_PREVIOUS_SIGNING_KEYS" env-separator:","`
	BuyerTokenTTL       time.Duration `yaml:"buyer_token_ttl" env:"MARKET_AUTH_BUYER_TOKEN_TTL" env-default:"168h"`
	SupplierTokenTTL    time.Duration `yaml:"supplier_token_ttl" env:"MARKET_AUTH_SUPPLIER_TOKEN_TTL" env-default:"168h"`
	AdminTokenTTL       time.Duration `yaml:"admin_token_ttl" env:"MARKET_AUTH_ADMIN_TOKEN_TTL" env-default:"12h"`
	TrialMonths         int           `yaml:"trial_months" env:"MARKET_AUTH_TRIAL_MONTHS" env-default:"6"`
	TrialWarningDays    int           `yaml:"trial_warning_days" env:"MARKET_AUTH_TRIAL_WARNING_DAYS" env-default:"30"`
	OTPTTL              time.Duration `yaml:"otp_ttl" env:"MARKET_AUTH_OTP_TTL" env-default:"10m"`
	ResetTokenTTL       time.Duration `yaml:"reset_token_ttl" env:"MARKET_AUTH_RESET_TOKEN_TTL" env-default:"60m"`
	RequireVerification bool          `yaml:"require_email_verification" env:"MARKET_AUTH_REQUIRE_EMAIL_VERIFICATION" env-default:"true"`
	BcryptCost          int           `yaml:"bcrypt_cost" env:"MARKET_AUTH_BCRYPT_COST" env-default:"12"`
	SecureCookies       bool          `yaml:"secure_cookies" env:"MARKET_AUTH_SECURE_COOKIES" env-default:"true"`

	DatabaseDSN  string `yaml:"database_dsn" env:"MARKET_AUTH_DATABASE_DSN" env-default:"file:marketplace.db?cache=shared"`
	RedisAddr    string `yaml:"redis_addr" env:"MARKET_AUTH_REDIS_ADDR"`
	AMQPURL      string `yaml:"amqp_url" env:"MARKET_AUTH_AMQP_URL"`
	AMQPExchange string `yaml:"amqp_exchange" env:"MARKET_AUTH_AMQP_EXCHANGE" env-default:"marketplace.notifications"`
	AMQPActivity string `yaml:"amqp_activity_exchange" env:"MARKET_AUTH_AMQP_ACTIVITY_EXCHANGE" env-default:"marketplace.activity"`

	PaymentAPIURL        string `yaml:"payment_api_url" env:"MARKET_AUTH_PAYMENT_API_URL"`
	PaymentAPIKey        string `yaml:"payment_api_key" env:"MARKET_AUTH_PAYMENT_API_KEY"`
	PaymentWebhookSecret string `yaml:"payment_webhook_secret" env:"MARKET_AUTH_PAYMENT_WEBHOOK_SECRET"`
	SubscriptionPrice    int64  `yaml:"subscription_price" env:"MARKET_AUTH_SUBSCRIPTION_PRICE" env-default:"4900"`
	SubscriptionDays     int    `yaml:"subscription_days" env:"MARKET_AUTH_SUBSCRIPTION_DAYS" env-default:"30"`
	SubscriptionCurrency string `yaml:"subscription_currency" env:"MARKET_AUTH_SUBSCRIPTION_CURRENCY" env-default:"USD"`

	HTTPAddr string `yaml:"http_addr" env:"MARKET_AUTH_HTTP_ADDR" env-default:":8080"`
}

// LoadConfig reads path when given, then the environment. Missing
// required values fail.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the defaults without reading anything. The
// signing key stays empty.
func DefaultConfig() Config {
	return Config{
		Issuer:               "marketplace",
		BuyerTokenTTL:        DefaultSessionTTL,
		SupplierTokenTTL:     DefaultSessionTTL,
		AdminTokenTTL:        DefaultAdminSessionTTL,
		TrialMonths:          DefaultTrialMonths,
		TrialWarningDays:     DefaultTrialWarningDays,
		OTPTTL:               OTPTTL,
		ResetTokenTTL:        ResetTokenTTL,
		RequireVerification:  true,
		BcryptCost:           passwordHashCost(),
		SecureCookies:        true,
		SubscriptionPrice:    4900,
		SubscriptionDays:     30,
		SubscriptionCurrency: "USD",
		AMQPExchange:         "marketplace.notifications",
		AMQPActivity:         "marketplace.activity",
		HTTPAddr:             ":8080",
	}
}

// Validate rejects configurations the module cannot start with
func (c Config) Validate() error {
	if strings.TrimSpace(c.SigningKey) == "" {
		return ErrMissingSigningKey
	}
	if c.TrialMonths <= 0 {
		return errors.New("trial months must be positive", errors.CategoryValidation).
			WithMetadata(map[string]any{"trial_months": c.TrialMonths})
	}
	if c.SubscriptionDays <= 0 {
		return errors.New("subscription days must be positive", errors.CategoryValidation).
			WithMetadata(map[string]any{"subscription_days": c.SubscriptionDays})
	}
	return nil
}

// TokenTTLs returns the per role token validity windows
func (c Config) TokenTTLs() TokenTTLs {
	return TokenTTLs{
		Buyer:    c.BuyerTokenTTL,
		Supplier: c.SupplierTokenTTL,
		Admin:    c.AdminTokenTTL,
	}
}

// TrialPolicy returns the trial derivation settings
func (c Config) TrialPolicy() TrialPolicy {
	return TrialPolicy{
		Months:      c.TrialMonths,
		WarningDays: c.TrialWarningDays,
	}
}
