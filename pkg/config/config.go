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
	JWT          JWTConfig
	Notifier     NotifierConfig
	Ledger       LedgerConfig
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
	Env          string `envconfig:"RXLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"RXLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RXLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RXLEDGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"RXLEDGER_DB_DSN"`

	Host     string `envconfig:"RXLEDGER_DB_HOST"`
	Port     int    `envconfig:"RXLEDGER_DB_PORT" default:"5432"`
	User     string `envconfig:"RXLEDGER_DB_USER"`
	Password string `envconfig:"RXLEDGER_DB_PASSWORD"`
	Name     string `envconfig:"RXLEDGER_DB_NAME"`
	SSLMode  string `envconfig:"RXLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RXLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RXLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RXLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RXLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RXLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RXLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"RXLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"RXLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RXLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RXLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RXLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RXLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RXLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RXLEDGER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RXLEDGER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"RXLEDGER_JWT_EXPIRATION_MINUTES" default:"60"`
}

type NotifierConfig struct {
	SubscriberBuffer int `envconfig:"RXLEDGER_NOTIFIER_SUBSCRIBER_BUFFER" default:"64"`
}

type LedgerConfig struct {
	CommitAttempts int `envconfig:"RXLEDGER_LEDGER_COMMIT_ATTEMPTS" default:"3"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RXLEDGER_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if values[env] == "" {
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
