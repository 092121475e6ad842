package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Token        TokenConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	Gateway      GatewayConfig
	Loyalty      LoyaltyConfig
	Sweeper      SweeperConfig
	Stock        StockConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GOMART_APP_ENV" required:"true"`
	Port         string `envconfig:"GOMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GOMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GOMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GOMART_DB_DSN"`
	Driver string `envconfig:"GOMART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"GOMART_DB_HOST"`
	Port     int    `envconfig:"GOMART_DB_PORT" default:"5432"`
	User     string `envconfig:"GOMART_DB_USER"`
	Password string `envconfig:"GOMART_DB_PASSWORD"`
	Name     string `envconfig:"GOMART_DB_NAME"`
	SSLMode  string `envconfig:"GOMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GOMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GOMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GOMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GOMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GOMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GOMART_REDIS_ADDR"`
	Password     string        `envconfig:"GOMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"GOMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GOMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GOMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GOMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GOMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GOMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// TokenConfig drives the signed-token service: one shared HMAC secret,
// kind-specific lifetimes.
type TokenConfig struct {
	Secret               string        `envconfig:"GOMART_TOKEN_SECRET" required:"true"`
	Issuer               string        `envconfig:"GOMART_TOKEN_ISSUER" required:"true"`
	AccessTTL            time.Duration `envconfig:"GOMART_TOKEN_ACCESS_TTL" default:"15m"`
	RefreshTTL           time.Duration `envconfig:"GOMART_TOKEN_REFRESH_TTL" default:"720h"`
	EmailVerificationTTL time.Duration `envconfig:"GOMART_TOKEN_EMAIL_VERIFICATION_TTL" default:"24h"`
	PasswordResetTTL     time.Duration `envconfig:"GOMART_TOKEN_PASSWORD_RESET_TTL" default:"1h"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"GOMART_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"GOMART_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"GOMART_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"GOMART_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"GOMART_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	LoginWindow         time.Duration `envconfig:"GOMART_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginLimit          int           `envconfig:"GOMART_RATE_LIMIT_LOGIN_LIMIT" default:"5"`
	LoginIPLimit        int           `envconfig:"GOMART_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	PasswordResetWindow time.Duration `envconfig:"GOMART_RATE_LIMIT_PASSWORD_RESET_WINDOW" default:"15m"`
	PasswordResetLimit  int           `envconfig:"GOMART_RATE_LIMIT_PASSWORD_RESET_LIMIT" default:"3"`
}

// GatewayConfig configures the external payment gateway. Requests and
// webhooks are authenticated with an HMAC-SHA256 checksum over the
// sorted-key-concatenated fields.
type GatewayConfig struct {
	BaseURL     string        `envconfig:"GOMART_GATEWAY_BASE_URL" required:"true"`
	ClientID    string        `envconfig:"GOMART_GATEWAY_CLIENT_ID" required:"true"`
	APIKey      string        `envconfig:"GOMART_GATEWAY_API_KEY" required:"true"`
	ChecksumKey string        `envconfig:"GOMART_GATEWAY_CHECKSUM_KEY" required:"true"`
	ReturnURL   string        `envconfig:"GOMART_GATEWAY_RETURN_URL"`
	CancelURL   string        `envconfig:"GOMART_GATEWAY_CANCEL_URL"`
	Timeout     time.Duration `envconfig:"GOMART_GATEWAY_TIMEOUT" default:"10s"`
	LinkExpiry  time.Duration `envconfig:"GOMART_GATEWAY_LINK_EXPIRY" default:"15m"`
}

type LoyaltyConfig struct {
	// EarnRate is the number of points credited per whole currency unit spent.
	EarnRate     float64 `envconfig:"GOMART_LOYALTY_EARN_RATE" default:"0.0001"`
	RedeemActive bool    `envconfig:"GOMART_LOYALTY_REDEEM_ACTIVE" default:"true"`
}

type SweeperConfig struct {
	GracePeriodDays int           `envconfig:"GOMART_SWEEPER_GRACE_PERIOD_DAYS" default:"7"`
	Interval        time.Duration `envconfig:"GOMART_SWEEPER_INTERVAL" default:"1h"`
	LockTTL         time.Duration `envconfig:"GOMART_SWEEPER_LOCK_TTL" default:"2h"`
}

type StockConfig struct {
	DefaultLowStockThreshold int `envconfig:"GOMART_STOCK_LOW_THRESHOLD" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GOMART_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
