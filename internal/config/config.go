// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package config loads shopfront settings.
//
// Sources are layered lowest to highest: flag defaults, the YAML config
// file (checked against the schema from GenerateSchema), connection URLs from the environment (optionally read from a .env
// file), then flags set explicitly on the command line.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/shopfront/shopfront/internal/xdg"
)

// Backends.
const (
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
	SessionBackendMemory   = "memory"

	NotifyBackendLog  = "log"
	NotifyBackendAMQP = "amqp"
)

// Environment variables holding connection URLs.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvRedisURL    = "REDIS_URL"
	EnvAMQPURL     = "AMQP_URL"
)

// Config is the complete server configuration.
type Config struct {
	HTTP    HTTPConfig    `koanf:"http"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Store   StoreConfig   `koanf:"store"`
	Session SessionConfig `koanf:"session"`
	Notify  NotifyConfig  `koanf:"notify"`
	Purge   PurgeConfig   `koanf:"purge"`
}

// HTTPConfig configures the storefront listener.
type HTTPConfig struct {
	Addr         string `koanf:"addr"`
	CookieSecure bool   `koanf:"cookie_secure"`
	// BaseURL is the public origin used in password recovery links.
	BaseURL string `koanf:"base_url"`
}

// MetricsConfig configures the observability listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StoreConfig configures the primary database.
type StoreConfig struct {
	DatabaseURL string        `koanf:"database_url"`
	Timeout     time.Duration `koanf:"timeout"`
}

// SessionConfig configures session storage.
type SessionConfig struct {
	Backend     string        `koanf:"backend" jsonschema:"enum=postgres,enum=redis,enum=memory"`
	TTL         time.Duration `koanf:"ttl"`
	RedisURL    string        `koanf:"redis_url"`
	RedisPrefix string        `koanf:"redis_prefix"`
}

// NotifyConfig configures notification delivery.
type NotifyConfig struct {
	Backend    string `koanf:"backend" jsonschema:"enum=log,enum=amqp"`
	AMQPURL    string `koanf:"amqp_url"`
	Queue      string `koanf:"queue"`
	From       string `koanf:"from"`
	Workers    int    `koanf:"workers" jsonschema:"minimum=1"`
	Buffer     int    `koanf:"buffer" jsonschema:"minimum=1"`
	MaxRetries int    `koanf:"max_retries"`
}

// PurgeConfig configures the expired session and token sweep.
type PurgeConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// Default values.
const (
	DefaultHTTPAddr       = ":3000"
	DefaultBaseURL        = "http://localhost:3000"
	DefaultMetricsAddr    = "127.0.0.1:9100"
	DefaultLogFormat      = "json"
	DefaultLogLevel       = "info"
	DefaultStoreTimeout   = 5 * time.Second
	DefaultSessionBackend = SessionBackendPostgres
	DefaultSessionTTL     = 24 * time.Hour
	DefaultRedisPrefix    = "shopfront:session:"
	DefaultNotifyBackend  = NotifyBackendLog
	DefaultNotifyQueue    = "shopfront.mail"
	DefaultNotifyFrom     = "shop@node-complete.com"
	DefaultNotifyWorkers  = 2
	DefaultNotifyBuffer   = 256
	DefaultMaxRetries     = 3
	DefaultPurgeInterval  = 10 * time.Minute
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":          "http.addr",
	"cookie-secure":      "http.cookie_secure",
	"base-url":           "http.base_url",
	"metrics-addr":       "metrics.addr",
	"log-format":         "log.format",
	"log-level":          "log.level",
	"store-timeout":      "store.timeout",
	"session-backend":    "session.backend",
	"session-ttl":        "session.ttl",
	"redis-prefix":       "session.redis_prefix",
	"notify-backend":     "notify.backend",
	"notify-queue":       "notify.queue",
	"notify-from":        "notify.from",
	"notify-workers":     "notify.workers",
	"notify-buffer":      "notify.buffer",
	"notify-max-retries": "notify.max_retries",
	"purge-interval":     "purge.interval",
}

// RegisterFlags adds the server flags, carrying the defaults, to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("http-addr", DefaultHTTPAddr, "storefront listen address")
	flags.Bool("cookie-secure", false, "mark the session cookie Secure")
	flags.String("base-url", DefaultBaseURL, "public origin used in password recovery links")
	flags.String("metrics-addr", DefaultMetricsAddr, "metrics and health listen address (empty disables)")
	flags.String("log-format", DefaultLogFormat, "log format (json or text)")
	flags.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.Duration("store-timeout", DefaultStoreTimeout, "bound on each store operation")
	flags.String("session-backend", DefaultSessionBackend, "session store (postgres, redis or memory)")
	flags.Duration("session-ttl", DefaultSessionTTL, "session lifetime")
	flags.String("redis-prefix", DefaultRedisPrefix, "redis key prefix for sessions")
	flags.String("notify-backend", DefaultNotifyBackend, "notification sink (log or amqp)")
	flags.String("notify-queue", DefaultNotifyQueue, "AMQP queue for mail jobs")
	flags.String("notify-from", DefaultNotifyFrom, "sender address for mail")
	flags.Int("notify-workers", DefaultNotifyWorkers, "notification delivery workers")
	flags.Int("notify-buffer", DefaultNotifyBuffer, "notification queue capacity")
	flags.Int("notify-max-retries", DefaultMaxRetries, "delivery retries after the first attempt (0 disables retries)")
	flags.Duration("purge-interval", DefaultPurgeInterval, "interval between expired session and token sweeps")
}

// DefaultPath returns the config file used when none is given.
func DefaultPath() string {
	return xdg.ConfigFile("config.yaml")
}

// LoadDotEnv reads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_DOTENV_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// Load builds a Config from the layered sources. An empty path selects
// DefaultPath, which may be absent; an explicit path must exist.
// getenv is usually os.Getenv. A nil flags uses the defaults alone.
func Load(flags *pflag.FlagSet, path string, getenv func(string) string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if explicit || fileExists(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateFile(data); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	for env, key := range map[string]string{
		EnvDatabaseURL: "store.database_url",
		EnvRedisURL:    "session.redis_url",
		EnvAMQPURL:     "notify.amqp_url",
	} {
		if v := getenv(env); v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, oops.Code("CONFIG_ENV_FAILED").With("env", env).Wrap(err)
			}
		}
	}

	if flags == nil {
		flags = pflag.NewFlagSet("shopfront", pflag.ContinueOnError)
		RegisterFlags(flags)
	}
	provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if u, err := url.Parse(c.HTTP.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, errors.New("http.base_url must be an absolute URL"))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, oops.Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, oops.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, errors.New(EnvDatabaseURL+" is required"))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, errors.New("store.timeout must be positive"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	switch c.Session.Backend {
	case SessionBackendPostgres, SessionBackendMemory:
	case SessionBackendRedis:
		if c.Session.RedisURL == "" {
			errs = append(errs, errors.New(EnvRedisURL+" is required for the redis session backend"))
		}
	default:
		errs = append(errs, oops.Errorf("session.backend must be postgres, redis or memory, got %q", c.Session.Backend))
	}
	switch c.Notify.Backend {
	case NotifyBackendLog:
	case NotifyBackendAMQP:
		if c.Notify.AMQPURL == "" {
			errs = append(errs, errors.New(EnvAMQPURL+" is required for the amqp notify backend"))
		}
		if c.Notify.Queue == "" {
			errs = append(errs, errors.New("notify.queue is required for the amqp notify backend"))
		}
	default:
		errs = append(errs, oops.Errorf("notify.backend must be log or amqp, got %q", c.Notify.Backend))
	}
	if c.Notify.Workers <= 0 {
		errs = append(errs, errors.New("notify.workers must be positive"))
	}
	if c.Notify.Buffer <= 0 {
		errs = append(errs, errors.New("notify.buffer must be positive"))
	}
	if c.Purge.Interval <= 0 {
		errs = append(errs, errors.New("purge.interval must be positive"))
	}

	if len(errs) > 0 {
		return oops.Code("CONFIG_INVALID").Wrap(errors.Join(errs...))
	}
	return nil
}
