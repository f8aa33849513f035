// Package config loads the jwtgate configuration from YAML with
// environment overrides.
//
//	issuer_domain: tenant.example.com
//	audience:
//	  - https://api.example.com
//	algorithms: [RS256]
//	clock_skew: 30s
//	jwks:
//	  cache_ttl: 15m
//	  refresh_schedule: "@every 10m"
//	revocation:
//	  file: /etc/jwtgate/revoked.yaml
//	  reload_schedule: "@every 1m"
//	log:
//	  level: info
//	  format: json
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvIssuerDomain = "JWTGATE_ISSUER_DOMAIN"
	EnvAudience     = "JWTGATE_AUDIENCE" // comma-separated
	EnvJWKSURI      = "JWTGATE_JWKS_URI"
	EnvRedisAddr    = "JWTGATE_REDIS_ADDR"
	EnvRedisDB      = "JWTGATE_REDIS_DB"
	EnvLogLevel     = "JWTGATE_LOG_LEVEL"
	EnvServerAddr   = "JWTGATE_SERVER_ADDR"
)

// Config is the complete jwtgate configuration.
type Config struct {
	IssuerDomain     string           `yaml:"issuer_domain" validate:"required,hostname|hostname_port"`
	Audience         []string         `yaml:"audience" validate:"required,min=1,dive,required"`
	Algorithms       []string         `yaml:"algorithms" validate:"min=1,dive,oneof=RS256 RS384 RS512 PS256 PS384 PS512"`
	ClockSkew        time.Duration    `yaml:"clock_skew" validate:"min=0"`
	PermissionsClaim string           `yaml:"permissions_claim" validate:"required"`
	JWKS             JWKSConfig       `yaml:"jwks"`
	Revocation       RevocationConfig `yaml:"revocation"`
	Log              LogConfig        `yaml:"log"`
	Server           ServerConfig     `yaml:"server"`
}

// JWKSConfig configures the key set cache.
type JWKSConfig struct {
	URI             string        `yaml:"uri" validate:"omitempty,url"`
	Discovery       bool          `yaml:"discovery"`
	CacheTTL        time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	RefreshSchedule string        `yaml:"refresh_schedule"`
	HTTPTimeout     time.Duration `yaml:"http_timeout" validate:"gt=0"`
}

// RevocationConfig lists revoked tokens inline, in a file and/or in Redis.
// All configured sources are consulted.
type RevocationConfig struct {
	Tokens         []string    `yaml:"tokens" validate:"dive,required"`
	File           string      `yaml:"file"`
	ReloadSchedule string      `yaml:"reload_schedule"`
	Redis          RedisConfig `yaml:"redis"`
}

// RedisConfig locates the shared revocation set. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"min=0"`
	Key      string `yaml:"key" validate:"required"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// ServerConfig configures the forward-auth service.
type ServerConfig struct {
	Addr             string        `yaml:"addr" validate:"required"`
	PermissionHeader string        `yaml:"permission_header" validate:"required"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// Default returns the configuration used for every option the file and the
// environment leave unset.
func Default() Config {
	return Config{
		Algorithms:       []string{"RS256"},
		PermissionsClaim: "permissions",
		JWKS: JWKSConfig{
			CacheTTL:        15 * time.Minute,
			RefreshSchedule: "@every 10m",
			HTTPTimeout:     30 * time.Second,
		},
		Revocation: RevocationConfig{
			ReloadSchedule: "@every 1m",
			Redis:          RedisConfig{Key: "jwtgate:revoked"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Addr:             ":8080",
			PermissionHeader: "X-Required-Permission",
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load reads the YAML file at path on top of Default, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvIssuerDomain); ok {
		c.IssuerDomain = v
	}
	if v, ok := os.LookupEnv(EnvAudience); ok {
		c.Audience = splitList(v)
	}
	if v, ok := os.LookupEnv(EnvJWKSURI); ok {
		c.JWKS.URI = v
	}
	if v, ok := os.LookupEnv(EnvRedisAddr); ok {
		c.Revocation.Redis.Addr = v
	}
	if v, ok := os.LookupEnv(EnvRedisDB); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRedisDB, err)
		}
		c.Revocation.Redis.DB = db
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := os.LookupEnv(EnvServerAddr); ok {
		c.Server.Addr = v
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks every field and reports all violations at once.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
}
