// Package config loads application configuration from environment variables
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration of the API and its commands.
type Config struct {
	Env         string // APP_ENV or NODE_ENV (development, test, production)
	Port        string // HTTP port to listen on
	DatabaseURL string // postgres://... or mysql://...
	LogLevel    string // logrus level name

	JWTSecret           string        // signs access tokens
	JWTExpiresIn        time.Duration // access token lifetime
	JWTRefreshSecret    string        // signs refresh tokens, must differ from JWTSecret
	JWTRefreshExpiresIn time.Duration // refresh token lifetime

	BcryptCost  int
	RabbitMQURL string // empty disables audit event publishing
}

// IsProduction reports whether cookies must be marked Secure.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// Load reads the configuration. A .env file in the working directory is
// loaded first when present; real environment variables win over it. Every
// problem found is reported in the returned error so a misconfigured
// deployment fails once with the full list.
func Load() (Config, error) {
	_ = godotenv.Load()

	var errs []error
	must := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}
	expiry := func(key, def string) time.Duration {
		raw := envStr(key, def)
		d, err := ParseExpiry(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid duration for %s: %q", key, raw))
		}
		return d
	}

	cfg := Config{
		Env:                 envStr("APP_ENV", envStr("NODE_ENV", "development")),
		Port:                envStr("APP_PORT", "8080"),
		DatabaseURL:         must("DATABASE_URL"),
		LogLevel:            envStr("LOG_LEVEL", "info"),
		JWTSecret:           must("JWT_SECRET"),
		JWTExpiresIn:        expiry("JWT_EXPIRES_IN", "24h"),
		JWTRefreshSecret:    must("JWT_REFRESH_SECRET"),
		JWTRefreshExpiresIn: expiry("JWT_REFRESH_EXPIRES_IN", "7d"),
		BcryptCost:          envInt("BCRYPT_COST", 10),
		RabbitMQURL:         envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
	}

	if cfg.JWTSecret != "" && cfg.JWTSecret == cfg.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST out of range: %d", cfg.BcryptCost))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// ParseExpiry accepts Go duration syntax ("15m", "24h"), a day suffix ("7d")
// or a bare number of seconds ("3600").
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		d = time.Duration(n) * 24 * time.Hour
	} else if n, err := strconv.Atoi(s); err == nil {
		d = time.Duration(n) * time.Second
	} else {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, err
		}
		d = parsed
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", s)
	}
	return d, nil
}
