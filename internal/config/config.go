// Package config reads server settings from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	Store       string `env:"KARTING_STORE" envDefault:"postgres"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`

	JWTSecret    string        `env:"JWT_SECRET"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	RacePageSize       int  `env:"RACE_PAGE_SIZE" envDefault:"2"`
	KartPageSize       int  `env:"KART_PAGE_SIZE" envDefault:"5"`
	EnforceEligibility bool `env:"ENFORCE_ELIGIBILITY" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads .env (if any) and the environment, then validates the result.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv reads ./.env into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("KARTING_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.RacePageSize < 1 || c.KartPageSize < 1 {
		errs = append(errs, errors.New("page sizes must be at least 1"))
	}
	if c.DBMaxConns < 1 {
		errs = append(errs, errors.New("DB_MAX_CONNS must be at least 1"))
	}
	return errors.Join(errs...)
}

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Exitf reports a startup failure and stops the process with status 1.
// Both binaries call it before anything is listening, so no cleanup is due.
func Exitf(format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintf(stderr, "karting: %s\n", msg)
	exit(1)
}
