package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Killbill     KillbillConfig
	Qualpay      QualpayConfig
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
	Env          string `envconfig:"QPBRIDGE_APP_ENV" required:"true"`
	Port         string `envconfig:"QPBRIDGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"QPBRIDGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"QPBRIDGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"QPBRIDGE_DB_DSN"`
	Driver string `envconfig:"QPBRIDGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"QPBRIDGE_DB_HOST"`
	LegacyPort     int    `envconfig:"QPBRIDGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"QPBRIDGE_DB_USER"`
	LegacyPassword string `envconfig:"QPBRIDGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"QPBRIDGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"QPBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"QPBRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"QPBRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"QPBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"QPBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"QPBRIDGE_REDIS_URL"`
	Address      string        `envconfig:"QPBRIDGE_REDIS_ADDR"`
	Password     string        `envconfig:"QPBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"QPBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"QPBRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"QPBRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"QPBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"QPBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"QPBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// KillbillConfig locates the host platform's REST API.
type KillbillConfig struct {
	BaseURL   string        `envconfig:"QPBRIDGE_KILLBILL_BASE_URL" required:"true"`
	Username  string        `envconfig:"QPBRIDGE_KILLBILL_USERNAME" required:"true"`
	Password  string        `envconfig:"QPBRIDGE_KILLBILL_PASSWORD" required:"true"`
	CreatedBy string        `envconfig:"QPBRIDGE_KILLBILL_CREATED_BY" default:"qualpay-bridge"`
	Timeout   time.Duration `envconfig:"QPBRIDGE_KILLBILL_TIMEOUT" default:"30s"`
}

// QualpayConfig carries the gateway endpoint plus an optional seed for the
// default tenant's credentials. Timeouts are string-encoded milliseconds, the
// encoding the gateway properties have always used.
type QualpayConfig struct {
	BaseURL string `envconfig:"QPBRIDGE_QUALPAY_BASE_URL" default:"https://api-test.qualpay.com"`

	SeedTenantID      string `envconfig:"QPBRIDGE_QUALPAY_SEED_TENANT_ID"`
	SeedAPIKey        string `envconfig:"QPBRIDGE_QUALPAY_SEED_API_KEY"`
	SeedMerchantID    int64  `envconfig:"QPBRIDGE_QUALPAY_SEED_MERCHANT_ID" default:"0"`
	ConnectionTimeout string `envconfig:"QPBRIDGE_QUALPAY_CONNECTION_TIMEOUT" default:"10000"`
	ReadTimeout       string `envconfig:"QPBRIDGE_QUALPAY_READ_TIMEOUT" default:"30000"`
}

// ConnectTimeoutDuration parses the string-encoded millisecond value.
func (q QualpayConfig) ConnectTimeoutDuration() time.Duration {
	return millisOrDefault(q.ConnectionTimeout, 10*time.Second)
}

// ReadTimeoutDuration parses the string-encoded millisecond value.
func (q QualpayConfig) ReadTimeoutDuration() time.Duration {
	return millisOrDefault(q.ReadTimeout, 30*time.Second)
}

func millisOrDefault(raw string, fallback time.Duration) time.Duration {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	ms, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"QPBRIDGE_AUTO_MIGRATE" default:"false"`
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
