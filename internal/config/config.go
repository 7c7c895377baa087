package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	AdminID         uuid.UUID `env:"FAUCET_ADMIN_ID,required"`
	WithdrawalLimit int64     `env:"FAUCET_WITHDRAWAL_LIMIT" envDefault:"1000"`
	CooldownWindowS int64     `env:"FAUCET_COOLDOWN_S" envDefault:"86400"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	// bcrypt hash of the key trusted clients present to mint tokens; empty
	// disables the token endpoint
	TokenClientKeyHash string `env:"TOKEN_CLIENT_KEY_HASH"`

	DatabaseURL string `env:"DATABASE_URL"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"faucet.transfers"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func (c *Config) CooldownWindow() time.Duration {
	return time.Duration(c.CooldownWindowS) * time.Second
}

// Load reads an optional .env file (or the given files) and then the
// process environment. Variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: dotenv: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.AdminID == uuid.Nil {
		return errors.New("FAUCET_ADMIN_ID must not be the nil uuid")
	}
	if c.WithdrawalLimit <= 0 {
		return errors.New("FAUCET_WITHDRAWAL_LIMIT must be greater than zero")
	}
	if c.CooldownWindowS < 0 {
		return errors.New("FAUCET_COOLDOWN_S must not be negative")
	}
	if c.CooldownWindowS > math.MaxInt64/int64(time.Second) {
		return errors.New("FAUCET_COOLDOWN_S is too large")
	}
	return nil
}
