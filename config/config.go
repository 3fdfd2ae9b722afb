// Package config loads tonauth settings from TONAUTH_* environment
// variables, optionally layered over a TOML file.
package config

import (
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/service"
)

// Config holds the server settings resolved from the environment and an optional TOML file
type Config struct {
	HTTPAddr       string   // TONAUTH_HTTP_ADDR (default ":8080")
	RedisURL       string   // TONAUTH_REDIS_URL (optional, empty = in-memory store)
	NATSURL        string   // TONAUTH_NATS_URL (optional, used when Redis is not set)
	SigningKeyPath string   // TONAUTH_SIGNING_KEY (PEM; required unless serve --dev)
	AllowedDomains []string // TONAUTH_ALLOWED_DOMAINS (required, comma separated)

	ChallengeTTL        time.Duration // TONAUTH_CHALLENGE_TTL (default 15m)
	AccessTTL           time.Duration // TONAUTH_ACCESS_TTL (default 1h)
	ProofSkew           time.Duration // TONAUTH_PROOF_SKEW (default 15m)
	AllowChallengeReuse bool          // TONAUTH_ALLOW_CHALLENGE_REUSE (default false)

	LogLevel slog.Level // TONAUTH_LOG_LEVEL (default info)
}

// fileConfig mirrors Config in the TOML file named by TONAUTH_CONFIG
type fileConfig struct {
	HTTPAddr            string   `toml:"http_addr"`
	RedisURL            string   `toml:"redis_url"`
	NATSURL             string   `toml:"nats_url"`
	SigningKey          string   `toml:"signing_key"`
	AllowedDomains      []string `toml:"allowed_domains"`
	ChallengeTTL        string   `toml:"challenge_ttl"`
	AccessTTL           string   `toml:"access_ttl"`
	ProofSkew           string   `toml:"proof_skew"`
	AllowChallengeReuse *bool    `toml:"allow_challenge_reuse"`
	LogLevel            string   `toml:"log_level"`
}

// Load reads the configuration. Environment variables win over the file.
func Load() (*Config, error) {
	var file fileConfig
	if path := os.Getenv("TONAUTH_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	c := &Config{
		HTTPAddr:       envOr("TONAUTH_HTTP_ADDR", file.HTTPAddr, ":8080"),
		RedisURL:       envOr("TONAUTH_REDIS_URL", file.RedisURL, ""),
		NATSURL:        envOr("TONAUTH_NATS_URL", file.NATSURL, ""),
		SigningKeyPath: envOr("TONAUTH_SIGNING_KEY", file.SigningKey, ""),
		AllowedDomains: file.AllowedDomains,
	}

	if v := os.Getenv("TONAUTH_ALLOWED_DOMAINS"); v != "" {
		c.AllowedDomains = splitList(v)
	}
	if len(c.AllowedDomains) == 0 {
		return nil, fmt.Errorf("TONAUTH_ALLOWED_DOMAINS is required: %w", core.ErrConfiguration)
	}

	var err error
	if c.ChallengeTTL, err = duration("TONAUTH_CHALLENGE_TTL", file.ChallengeTTL, "15m"); err != nil {
		return nil, err
	}
	if c.AccessTTL, err = duration("TONAUTH_ACCESS_TTL", file.AccessTTL, "1h"); err != nil {
		return nil, err
	}
	if c.ProofSkew, err = duration("TONAUTH_PROOF_SKEW", file.ProofSkew, "15m"); err != nil {
		return nil, err
	}

	if file.AllowChallengeReuse != nil {
		c.AllowChallengeReuse = *file.AllowChallengeReuse
	}
	if v := os.Getenv("TONAUTH_ALLOW_CHALLENGE_REUSE"); v != "" {
		if c.AllowChallengeReuse, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("TONAUTH_ALLOW_CHALLENGE_REUSE: %w", err)
		}
	}

	if err := c.LogLevel.UnmarshalText([]byte(envOr("TONAUTH_LOG_LEVEL", file.LogLevel, "info"))); err != nil {
		return nil, fmt.Errorf("TONAUTH_LOG_LEVEL: %w", err)
	}

	return c, nil
}

// Service returns the settings of the authentication service
func (c *Config) Service() service.Config {
	return service.Config{
		AllowedDomains:      c.AllowedDomains,
		ChallengeTTL:        c.ChallengeTTL,
		AccessTTL:           c.AccessTTL,
		ProofSkew:           c.ProofSkew,
		AllowChallengeReuse: c.AllowChallengeReuse,
	}
}

// LoadSigningKey reads a PEM encoded P-256 private key
func LoadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key %s: %v: %w", path, err, core.ErrConfiguration)
	}
	return key, nil
}

func envOr(key, fileValue, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return fallback
}

func duration(key, fileValue, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOr(key, fileValue, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive: %w", key, core.ErrConfiguration)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
