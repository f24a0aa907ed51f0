// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is everything the server needs from the environment.
type Config struct {
	Addr       string
	Env        string
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	PGDSN      string
	// AllowedOrigins may make credentialed cross-origin requests.
	AllowedOrigins []string
}

// Production reports whether the server runs with production hardening.
func (c Config) Production() bool { return c.Env == EnvProduction }

// Load reads the environment. A .env file in the working directory is applied
// first without overriding already-exported variables; missing files are fine.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:       envOr("AUTHCORE_ADDR", ":8080"),
		Env:        strings.ToLower(envOr("AUTHCORE_ENV", EnvDevelopment)),
		JWTSecret:  os.Getenv("AUTHCORE_JWT_SECRET"),
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		PGDSN:      os.Getenv("AUTHCORE_PG_DSN"),
	}

	if cfg.Env != EnvDevelopment && cfg.Env != EnvProduction {
		return Config{}, fmt.Errorf("AUTHCORE_ENV must be %s or %s, got %q",
			EnvDevelopment, EnvProduction, cfg.Env)
	}

	if v := os.Getenv("AUTHCORE_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid AUTHCORE_ACCESS_TTL %q", v)
		}
		cfg.AccessTTL = d
	}
	if v := os.Getenv("AUTHCORE_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid AUTHCORE_REFRESH_TTL %q", v)
		}
		cfg.RefreshTTL = d
	}

	if cfg.JWTSecret == "" {
		if cfg.Production() {
			return Config{}, errors.New("AUTHCORE_JWT_SECRET is required in production")
		}
		// Deterministic development-only fallback.
		cfg.JWTSecret = "dev-secret-change-me"
	}
	if cfg.Production() && cfg.PGDSN == "" {
		return Config{}, errors.New("AUTHCORE_PG_DSN is required in production")
	}

	for _, o := range strings.Split(os.Getenv("AUTHCORE_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
