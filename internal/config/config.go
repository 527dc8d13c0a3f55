package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	Port               string `env:"PORT" envDefault:"8080"`
	InitialBuyingPower string `env:"INITIAL_BUYING_POWER" envDefault:"10000"`
	Postgres           Postgres
	Redis              Redis
	Quotes             Quotes
	JWT                JWT
}

type Postgres struct {
	URL             string        `env:"POSTGRES_URL,required"`
	MigrationsDir   string        `env:"PG_MIGRATIONS_DIR" envDefault:"migrations"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type Quotes struct {
	BaseURL         string        `env:"QUOTE_API_URL,required"`
	Timeout         time.Duration `env:"QUOTE_API_TIMEOUT" envDefault:"8s"`
	Debug           bool          `env:"QUOTE_API_DEBUG" envDefault:"false"`
	CacheTTL        time.Duration `env:"QUOTE_CACHE_TTL" envDefault:"1m"`
	RefreshInterval time.Duration `env:"QUOTE_REFRESH_INTERVAL" envDefault:"15m"`
}

type JWT struct {
	Secret string        `env:"JWT_SECRET,required"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`
}

// Load reads .env if present and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
