// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kalinanews/newsroom/auth"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. NEWSROOM_JWT_SECRET
const Prefix = "NEWSROOM"

// devSecret signs tokens in development when no secret is configured
const devSecret = "newsroom-development-secret-do-not-use"

type Config struct {
	Env       string `envconfig:"ENV" default:"production"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8000"`
	APIPrefix string `envconfig:"API_PREFIX" default:"/api/v1"`

	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBDSN    string `envconfig:"DB_DSN" default:"file:kalina_news.db"`

	JWTSecret    string        `envconfig:"JWT_SECRET"`
	JWTAlgorithm string        `envconfig:"JWT_ALGORITHM" default:"HS256"`
	JWTTTL       time.Duration `envconfig:"JWT_TTL" default:"168h"`
	JWTIssuer    string        `envconfig:"JWT_ISSUER" default:"newsroom"`

	BcryptCost int `envconfig:"BCRYPT_COST" default:"12"`

	CORSOrigins  []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	PhoneRegion  string   `envconfig:"PHONE_REGION" default:"US"`
	PageLimitMax int      `envconfig:"PAGE_LIMIT_MAX" default:"100"`
}

// Load reads envFile when it exists, then the environment. Variables
// already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development") || strings.EqualFold(c.Env, "dev")
}

// Validate fails on settings that would otherwise surface per request.
// A missing JWT secret is replaced by a fixed one only when ENV names a
// development environment; ENV defaults to production.
func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		if c.IsDevelopment() {
			c.JWTSecret = devSecret
		} else {
			errs = append(errs, errors.New("JWT_SECRET is required outside development"))
		}
	}
	if _, err := c.TokenConfig(); err != nil && c.JWTSecret != "" {
		errs = append(errs, err)
	}
	if c.BcryptCost != 0 {
		if _, err := auth.NewBcryptHasher(c.BcryptCost); err != nil {
			errs = append(errs, err)
		}
	}
	switch strings.ToLower(c.DBDriver) {
	case "sqlite", "postgres", "postgresql", "pgx":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if c.PageLimitMax < 1 {
		errs = append(errs, fmt.Errorf("PAGE_LIMIT_MAX must be positive, got %d", c.PageLimitMax))
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("API_PREFIX must start with /, got %q", c.APIPrefix))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// TokenConfig is the immutable token service configuration
func (c *Config) TokenConfig() (auth.TokenConfig, error) {
	return auth.TokenConfig{
		SigningKey:    []byte(c.JWTSecret),
		SigningMethod: strings.ToUpper(c.JWTAlgorithm),
		TTL:           c.JWTTTL,
		Issuer:        c.JWTIssuer,
	}.Validate()
}

// AllowedOrigins returns the CORS origins joined for fiber's cors config
func (c *Config) AllowedOrigins() string {
	origins := make([]string, 0, len(c.CORSOrigins))
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return strings.Join(origins, ",")
}
