// Package config loads runtime settings from defaults, an optional YAML file,
// a .env file and ACADEMY_* environment variables, in increasing precedence.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // timezone works on hosts without a zoneinfo database

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. ACADEMY_DB_PATH.
const EnvPrefix = "ACADEMY"

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Email providers
const (
	EmailNoop   = "noop"
	EmailResend = "resend"
)

// ErrInvalid is wrapped by every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// Email configures notification delivery.
type Email struct {
	Provider string
	APIKey   string
	From     string
	ReplyTo  string
}

// Config is the resolved runtime configuration.
type Config struct {
	Env            string
	LogLevel       string
	Listen         string
	DBPath         string
	SyncInterval   time.Duration // re-sync poll of the shared blobs
	ToastTTL       time.Duration
	OutboxInterval time.Duration
	SlowRequest    time.Duration
	SlowQuery      time.Duration
	RateLimit      int // requests per second per client
	Email          Email
	CSRFKey        []byte
	CSRFGenerated  bool // no key configured; a random one was generated
	TrustedOrigins []string
	Timezone       string
	Location       *time.Location
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool { return c.Env == EnvProduction }

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("log_level", "info")
	v.SetDefault("listen", ":8080")
	v.SetDefault("db_path", "academy.db")
	v.SetDefault("sync_interval", 15*time.Second)
	v.SetDefault("toast_ttl", 4*time.Second)
	v.SetDefault("outbox_interval", time.Minute)
	v.SetDefault("slow_request", 200*time.Millisecond)
	v.SetDefault("slow_query", 100*time.Millisecond)
	v.SetDefault("rate_limit", 10)
	v.SetDefault("email.provider", EmailNoop)
	v.SetDefault("email.api_key", "")
	v.SetDefault("email.from", "agenda@localhost")
	v.SetDefault("email.reply_to", "")
	v.SetDefault("csrf_key", "")
	v.SetDefault("trusted_origins", []string{})
	v.SetDefault("timezone", "UTC")
}

// Load resolves the configuration. configFile and dotEnvFile are optional; a
// missing .env file is ignored, a missing config file is an error.
// PRE: none
// POST: returned Config has a 32-byte CSRF key and a non-nil Location
func Load(configFile, dotEnvFile string) (Config, error) {
	if dotEnvFile != "" {
		if _, err := os.Stat(dotEnvFile); err == nil {
			// Load never overrides variables already set in the environment.
			if err := godotenv.Load(dotEnvFile); err != nil {
				return Config{}, errors.Wrapf(err, "load %s", dotEnvFile)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "stat %s", dotEnvFile)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", configFile)
		}
	}

	cfg := Config{
		Env:            strings.ToLower(v.GetString("env")),
		LogLevel:       v.GetString("log_level"),
		Listen:         v.GetString("listen"),
		DBPath:         v.GetString("db_path"),
		SyncInterval:   v.GetDuration("sync_interval"),
		ToastTTL:       v.GetDuration("toast_ttl"),
		OutboxInterval: v.GetDuration("outbox_interval"),
		SlowRequest:    v.GetDuration("slow_request"),
		SlowQuery:      v.GetDuration("slow_query"),
		RateLimit:      v.GetInt("rate_limit"),
		Email: Email{
			Provider: strings.ToLower(v.GetString("email.provider")),
			APIKey:   v.GetString("email.api_key"),
			From:     v.GetString("email.from"),
			ReplyTo:  v.GetString("email.reply_to"),
		},
		TrustedOrigins: v.GetStringSlice("trusted_origins"),
		Timezone:       v.GetString("timezone"),
	}
	if err := cfg.resolve(v.GetString("csrf_key")); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolve validates the raw values and derives the location and CSRF key.
func (c *Config) resolve(csrfHex string) error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return errors.Wrapf(ErrInvalid, "env must be %s or %s, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if c.SyncInterval < time.Second {
		return errors.Wrapf(ErrInvalid, "sync_interval must be at least 1s, got %s", c.SyncInterval)
	}
	if c.OutboxInterval < time.Second {
		return errors.Wrapf(ErrInvalid, "outbox_interval must be at least 1s, got %s", c.OutboxInterval)
	}
	if c.RateLimit <= 0 {
		return errors.Wrapf(ErrInvalid, "rate_limit must be positive, got %d", c.RateLimit)
	}

	switch c.Email.Provider {
	case EmailNoop:
	case EmailResend:
		if c.Email.APIKey == "" || c.Email.From == "" {
			return errors.Wrap(ErrInvalid, "email.api_key and email.from are required for the resend provider")
		}
	default:
		return errors.Wrapf(ErrInvalid, "email.provider must be %s or %s, got %q", EmailNoop, EmailResend, c.Email.Provider)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return errors.Wrapf(ErrInvalid, "timezone %q: %v", c.Timezone, err)
	}
	c.Location = loc

	switch {
	case csrfHex != "":
		key, err := hex.DecodeString(csrfHex)
		if err != nil || len(key) != 32 {
			return errors.Wrap(ErrInvalid, "csrf_key must be 64 hex characters (32 bytes)")
		}
		c.CSRFKey = key
	case c.IsProduction():
		return errors.Wrap(ErrInvalid, "csrf_key is required in production")
	default:
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return errors.Wrap(err, "generate csrf key")
		}
		c.CSRFKey = key
		c.CSRFGenerated = true
	}
	return nil
}
