package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// ErrConfiguration wraps every failure to build a usable Config.
var ErrConfiguration = errors.New("configuration error")

// maxTokenTTLMinutes is the largest lifetime a time.Duration can hold.
const maxTokenTTLMinutes = math.MaxInt64 / int64(time.Minute)

// Config holds application level configuration aggregated from env/config files.
// It is built once at startup and passed by value afterwards.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		URL string
	}
	Auth struct {
		SecretKey       string
		Algorithm       string
		TokenTTLMinutes int
		BcryptCost      int
	}
	Log struct {
		Level  string
		Format string
	}
}

// TokenTTL returns the configured access token lifetime.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// envBindings maps config keys to the environment variables that feed them.
var envBindings = map[string]string{
	"server.addr":          "SERVER_ADDR",
	"database.url":         "DATABASE_URL",
	"auth.secretkey":       "SECRET_KEY",
	"auth.algorithm":       "ALGORITHM",
	"auth.tokenttlminutes": "ACCESS_TOKEN_EXPIRE_MINUTES",
	"auth.bcryptcost":      "BCRYPT_COST",
	"log.level":            "LOG_LEVEL",
	"log.format":           "LOG_FORMAT",
}

// Load reads configuration from environment variables, a .env file and an optional
// config file, then validates it. Every error wraps ErrConfiguration.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("%w: bind %s: %w", ErrConfiguration, env, err)
		}
	}

	v.SetDefault("server.addr", "0.0.0.0:8000")
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: failed to unmarshal config: %w", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every required setting is present and well formed.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Database.URL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(c.Auth.SecretKey) == "" {
		missing = append(missing, "SECRET_KEY")
	}
	if strings.TrimSpace(c.Auth.Algorithm) == "" {
		missing = append(missing, "ALGORITHM")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required settings: %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("%w: ACCESS_TOKEN_EXPIRE_MINUTES must be a positive integer", ErrConfiguration)
	}
	if int64(c.Auth.TokenTTLMinutes) > maxTokenTTLMinutes {
		return fmt.Errorf("%w: ACCESS_TOKEN_EXPIRE_MINUTES must not exceed %d", ErrConfiguration, maxTokenTTLMinutes)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be text or json", ErrConfiguration)
	}
	return nil
}

// loadDotEnv exports the variables in path into the process environment.
// Variables that are already set win over the file; a missing file is ignored.
func loadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: read %s: %w", ErrConfiguration, path, err)
	}
	return nil
}
