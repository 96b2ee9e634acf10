package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	AppEnv   string     `env:"APP_ENV" envDefault:"production"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"DB_PATH" envDefault:"data/battle.db"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	AIEnabled     bool          `env:"AI_ENABLED" envDefault:"true"`
	AITimeout     time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`

	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"false"`
	AnswerGrace   time.Duration `env:"ANSWER_GRACE" envDefault:"2s"`
	PresenceTTL   time.Duration `env:"PRESENCE_TTL" envDefault:"2m"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:5173"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	SPADir string `env:"SPA_DIR"`
}

// Load reads .env from the working directory when present, then the
// environment. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

func LoadFrom(dotenv string) (*Config, error) {
	if err := loadDotEnv(dotenv); err != nil {
		return nil, fmt.Errorf("loading %s: %w", dotenv, err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.AnswerGrace < 0 {
		return errors.New("ANSWER_GRACE must not be negative")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// Dev reports whether unexpected error details may reach clients.
func (c *Config) Dev() bool { return c.AppEnv == EnvDevelopment }

// AIActive reports whether question generation can call the model.
func (c *Config) AIActive() bool { return c.AIEnabled && c.OpenAIAPIKey != "" }

// DSN is the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}
