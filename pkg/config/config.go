package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is passed to envconfig; tags carry the full variable names.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SHOPLINE_DB_DSN"
	EnvDBHost = "SHOPLINE_DB_HOST"
	EnvDBUser = "SHOPLINE_DB_USER"
	EnvDBName = "SHOPLINE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Cache  CacheConfig
	JWT    JWTConfig
	Stripe StripeConfig
	Reaper ReaperConfig
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
	Env          string `envconfig:"SHOPLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPLINE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"SHOPLINE_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPLINE_DB_DSN"`
	Driver string `envconfig:"SHOPLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPLINE_DB_USER"`
	LegacyPassword string `envconfig:"SHOPLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPLINE_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CacheConfig drives the snapshot cache: TTLs plus the cipher key protecting
// priced payloads stored in the shared cache.
type CacheConfig struct {
	SnapshotKey string        `envconfig:"SHOPLINE_CACHE_SNAPSHOT_KEY" required:"true"`
	SnapshotTTL time.Duration `envconfig:"SHOPLINE_CACHE_SNAPSHOT_TTL" default:"1h"`
	CounterTTL  time.Duration `envconfig:"SHOPLINE_CACHE_COUNTER_TTL" default:"1h"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOPLINE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SHOPLINE_STRIPE_API_KEY"`
	Env    string `envconfig:"SHOPLINE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// ReaperConfig controls the stale-checkout expiry worker.
type ReaperConfig struct {
	PendingTTL time.Duration `envconfig:"SHOPLINE_REAPER_PENDING_TTL" default:"24h"`
	Interval   time.Duration `envconfig:"SHOPLINE_REAPER_INTERVAL" default:"15m"`
	BatchSize  int           `envconfig:"SHOPLINE_REAPER_BATCH_SIZE" default:"100"`
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
