package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "COMPRABOT_DB_DSN"
	EnvDBHost = "COMPRABOT_DB_HOST"
	EnvDBUser = "COMPRABOT_DB_USER"
	EnvDBName = "COMPRABOT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Commerce     CommerceConfig
	Token        TokenConfig
	RateLimit    RateLimitConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Commerce.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COMPRABOT_APP_ENV" required:"true"`
	Port         string `envconfig:"COMPRABOT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COMPRABOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COMPRABOT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"COMPRABOT_DB_DSN"`
	Driver string `envconfig:"COMPRABOT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COMPRABOT_DB_HOST"`
	LegacyPort     int    `envconfig:"COMPRABOT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COMPRABOT_DB_USER"`
	LegacyPassword string `envconfig:"COMPRABOT_DB_PASSWORD"`
	LegacyName     string `envconfig:"COMPRABOT_DB_NAME"`
	LegacySSLMode  string `envconfig:"COMPRABOT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COMPRABOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COMPRABOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COMPRABOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COMPRABOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COMPRABOT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COMPRABOT_REDIS_ADDR"`
	Password     string        `envconfig:"COMPRABOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"COMPRABOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COMPRABOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COMPRABOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COMPRABOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COMPRABOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COMPRABOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COMPRABOT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COMPRABOT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COMPRABOT_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// CommerceConfig holds the live tax and FX configuration applied at cart-view
// and order-creation time. Values are strings so they parse exactly into
// decimals, never through a float.
type CommerceConfig struct {
	TaxPercentRaw string `envconfig:"COMPRABOT_TAX_PERCENT" default:"16"`
	FXRateRaw     string `envconfig:"COMPRABOT_FX_RATE" default:"36.50"`
	LocalCurrency string `envconfig:"COMPRABOT_LOCAL_CURRENCY" default:"VES"`
}

func (c CommerceConfig) validate() error {
	if _, err := decimal.NewFromString(c.TaxPercentRaw); err != nil {
		return fmt.Errorf("invalid tax percent %q: %w", c.TaxPercentRaw, err)
	}
	if _, err := decimal.NewFromString(c.FXRateRaw); err != nil {
		return fmt.Errorf("invalid fx rate %q: %w", c.FXRateRaw, err)
	}
	return nil
}

// TaxPercent returns the configured tax percentage.
func (c CommerceConfig) TaxPercent() decimal.Decimal {
	value, err := decimal.NewFromString(c.TaxPercentRaw)
	if err != nil {
		return decimal.Zero
	}
	return value
}

// FXRate returns the configured USD-to-local conversion rate.
func (c CommerceConfig) FXRate() decimal.Decimal {
	value, err := decimal.NewFromString(c.FXRateRaw)
	if err != nil {
		return decimal.Zero
	}
	return value
}

type TokenConfig struct {
	TTLMinutes         int    `envconfig:"COMPRABOT_TOKEN_TTL_MINUTES" default:"15"`
	DefaultChannel     string `envconfig:"COMPRABOT_TOKEN_DEFAULT_CHANNEL" default:"whatsapp"`
	DefaultDestination string `envconfig:"COMPRABOT_TOKEN_DEFAULT_DESTINATION"`
}

// TTL returns the token validity window.
func (t TokenConfig) TTL() time.Duration {
	if t.TTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(t.TTLMinutes) * time.Minute
}

type RateLimitConfig struct {
	AssistantWindow       time.Duration `envconfig:"COMPRABOT_RATE_LIMIT_ASSISTANT_WINDOW" default:"1m"`
	AssistantIPLimit      int           `envconfig:"COMPRABOT_RATE_LIMIT_ASSISTANT_IP_LIMIT" default:"30"`
	AssistantSessionLimit int           `envconfig:"COMPRABOT_RATE_LIMIT_ASSISTANT_SESSION_LIMIT" default:"15"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"COMPRABOT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	TokenDispatchTopic string `envconfig:"COMPRABOT_PUBSUB_TOKEN_DISPATCH_TOPIC" default:"comprabot-token-dispatch"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COMPRABOT_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
