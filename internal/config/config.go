package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	SessionSecret string `env:"SESSION_SECRET"`

	Env       string `env:"APP_ENV" envDefault:"dev"`
	DBPath    string `env:"DB_PATH" envDefault:"./dev.db"`
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// PresetsFile replaces the embedded seed presets when set.
	PresetsFile string `env:"PRESETS_FILE"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	RateLimit  int           `env:"RATE_LIMIT" envDefault:"60"`
	RateWindow time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
}

// IsDev reports whether the app runs in local development mode.
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}

// Load reads the optional dotenv file and then the process environment.
func Load(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	// Missing files are fine; production injects real env vars.
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.RateLimit <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT must be greater than 0")
	}
	if cfg.RateWindow <= 0 {
		return Config{}, fmt.Errorf("RATE_WINDOW must be greater than 0")
	}

	if cfg.AdminEmail == "" {
		log.Print("warning: ADMIN_EMAIL is not set")
	}
	if cfg.AdminPassword == "" {
		log.Print("warning: ADMIN_PASSWORD is not set")
	}
	if cfg.SessionSecret == "" {
		log.Print("warning: SESSION_SECRET is not set")
	}

	return cfg, nil
}
