package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultAppName         = "Check8Auto"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAccessTokenTTL  = 7 * 24 * time.Hour
	defaultRefreshTokenTTL = 24 * time.Hour
	defaultOTPTTL          = 300 * time.Second
	defaultOrderTTL        = 24 * time.Hour
	defaultAcceptFee       = "200.00"
	defaultAcceptMinimum   = "1000.00"
	defaultSMSCAPIURL      = "https://smsc.ru/sys/send.php"
	defaultSMTPPort        = 587
	defaultLoginRateLimit  = 5
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

var validate = validator.New()

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string        `validate:"required"`
	Env             string        `validate:"oneof=development dev local test production"`
	Port            string        `validate:"required"`
	LogLevel        string        `validate:"oneof=debug info warn error"`
	DatabaseURL     string
	RedisURL        string
	RunMigrations   bool
	ShutdownPeriod  time.Duration `validate:"gt=0"`
	IdempotencyTTL  time.Duration `validate:"gt=0"`
	JWTSecret       string        `validate:"required,min=16"`
	RefreshSecret   string        `validate:"required,min=16"`
	AccessTokenTTL  time.Duration `validate:"gt=0"`
	RefreshTokenTTL time.Duration `validate:"gt=0"`
	LoginRateLimit  int           `validate:"gte=0"`

	OTP   OTPConfig
	SMS   SMSConfig
	Email EmailConfig
	Order OrderConfig
}

// OTPConfig controls one-time-code challenges.
type OTPConfig struct {
	TTL time.Duration `validate:"gt=0"`
}

// SMSConfig configures the SMSC.ru gateway. When DeliveryEnabled is false codes
// are written to the log instead of being sent.
type SMSConfig struct {
	DeliveryEnabled  bool
	Login            string `validate:"required_if=DeliveryEnabled true"`
	Password         string `validate:"required_if=DeliveryEnabled true"`
	APIURL           string `validate:"omitempty,url"`
	BalanceWarnBelow decimal.Decimal
}

// EmailConfig configures SMTP delivery of login codes.
type EmailConfig struct {
	DeliveryEnabled bool
	Host            string `validate:"required_if=DeliveryEnabled true"`
	Port            int    `validate:"gt=0,lt=65536"`
	Username        string
	Password        string
	From            string `validate:"omitempty,email"`
}

// OrderConfig holds the acceptance fee policy and order lifetime.
type OrderConfig struct {
	AcceptFee        decimal.Decimal
	AcceptMinBalance decimal.Decimal
	TTL              time.Duration `validate:"gt=0"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("RUN_MIGRATIONS", true)
	v.SetDefault("ACCESS_TOKEN_TTL", defaultAccessTokenTTL)
	v.SetDefault("REFRESH_TOKEN_TTL", defaultRefreshTokenTTL)
	v.SetDefault("OTP_TTL", defaultOTPTTL)
	v.SetDefault("ORDER_TTL", defaultOrderTTL)
	v.SetDefault("ORDER_ACCEPT_FEE", defaultAcceptFee)
	v.SetDefault("ORDER_ACCEPT_MIN_BALANCE", defaultAcceptMinimum)
	v.SetDefault("LOGIN_RATE_LIMIT_PER_MIN", defaultLoginRateLimit)
	v.SetDefault("SMS_DELIVERY_ENABLED", false)
	v.SetDefault("SMSC_API_URL", defaultSMSCAPIURL)
	v.SetDefault("SMSC_BALANCE_WARN_BELOW", "0")
	v.SetDefault("EMAIL_DELIVERY_ENABLED", false)
	v.SetDefault("SMTP_PORT", defaultSMTPPort)

	cfg := Config{
		AppName:         v.GetString("APP_NAME"),
		Env:             strings.ToLower(v.GetString("APP_ENV")),
		Port:            v.GetString("PORT"),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		DatabaseURL:     v.GetString("DATABASE_URL"),
		RedisURL:        v.GetString("REDIS_URL"),
		RunMigrations:   v.GetBool("RUN_MIGRATIONS"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		JWTSecret:       v.GetString("JWT_SECRET"),
		RefreshSecret:   v.GetString("REFRESH_SECRET"),
		AccessTokenTTL:  v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL: v.GetDuration("REFRESH_TOKEN_TTL"),
		LoginRateLimit:  v.GetInt("LOGIN_RATE_LIMIT_PER_MIN"),
		OTP: OTPConfig{
			TTL: v.GetDuration("OTP_TTL"),
		},
		SMS: SMSConfig{
			DeliveryEnabled: v.GetBool("SMS_DELIVERY_ENABLED"),
			Login:           v.GetString("SMSC_LOGIN"),
			Password:        v.GetString("SMSC_PASSWORD"),
			APIURL:          v.GetString("SMSC_API_URL"),
		},
		Email: EmailConfig{
			DeliveryEnabled: v.GetBool("EMAIL_DELIVERY_ENABLED"),
			Host:            v.GetString("SMTP_HOST"),
			Port:            v.GetInt("SMTP_PORT"),
			Username:        v.GetString("SMTP_USERNAME"),
			Password:        v.GetString("SMTP_PASSWORD"),
			From:            v.GetString("SMTP_FROM"),
		},
		Order: OrderConfig{
			TTL: v.GetDuration("ORDER_TTL"),
		},
	}

	if s := v.GetString(shutdownSecondsEnvVar); s != "" {
		seconds := v.GetInt(shutdownSecondsEnvVar)
		if seconds <= 0 {
			return Config{}, fmt.Errorf("invalid %s: %q", shutdownSecondsEnvVar, s)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if s := v.GetString(shutdownDurationEnvVar); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if s := v.GetString(idemTTLSecondsEnvVar); s != "" {
		seconds := v.GetInt(idemTTLSecondsEnvVar)
		if seconds <= 0 {
			return Config{}, fmt.Errorf("invalid %s: %q", idemTTLSecondsEnvVar, s)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if s := v.GetString(idemTTLDurEnvVar); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	var err error
	if cfg.Order.AcceptFee, err = parseAmount(v, "ORDER_ACCEPT_FEE"); err != nil {
		return Config{}, err
	}
	if cfg.Order.AcceptMinBalance, err = parseAmount(v, "ORDER_ACCEPT_MIN_BALANCE"); err != nil {
		return Config{}, err
	}
	if cfg.SMS.BalanceWarnBelow, err = parseAmount(v, "SMSC_BALANCE_WARN_BELOW"); err != nil {
		return Config{}, err
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
	}
	if cfg.Email.DeliveryEnabled && cfg.Email.From == "" {
		return Config{}, fmt.Errorf("SMTP_FROM must be set when email delivery is enabled")
	}
	if cfg.Order.AcceptFee.IsNegative() || cfg.Order.AcceptMinBalance.IsNegative() {
		return Config{}, fmt.Errorf("order fee and minimum balance must not be negative")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service may run without Postgres and Redis.
func (c Config) IsDev() bool {
	switch c.Env {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func parseAmount(v *viper.Viper, key string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(v.GetString(key))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return amount.Round(2), nil
}
