// Package config loads runtime settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/coperacha/pkg/persistence/middleware"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable.
const EnvPrefix = "COPERACHA"

// Defaults.
const (
	DefaultListenAddr        = ":8080"
	DefaultRedisPrefix       = "coperacha:"
	DefaultExchangeRate      = 80000.0
	DefaultWalletRegisterURL = "https://metamask.io/download"
	DefaultSessionTimeout    = 5 * time.Minute
	DefaultFanout            = 8
	DefaultRPS               = 2.0
	DefaultBurst             = 5
	DefaultReceiptTimeout    = 3 * time.Minute
	DefaultQueueSize         = 256
	DefaultMailbox           = 16
	DefaultMailboxIdle       = time.Minute
)

// legacyEnv maps keys to the environment names the previous deployment used.
var legacyEnv = map[string]string{
	"exchange_rate_fallback": "ETH_TO_HNL",
	"wallet_register_url":    "WALLET_REGISTER_URL",
	"ledger.rpc_url":         "QUICK_NODE_API",
	"ledger.factory_address": "CONTRACT_ADDRESS",
	"ledger.private_key":     "Private_Key",
}

// Config is the effective configuration.
type Config struct {
	ListenAddr           string  `mapstructure:"listen_addr" yaml:"listen_addr"`
	LogLevel             string  `mapstructure:"log_level" yaml:"log_level"`
	LogJSON              bool    `mapstructure:"log_json" yaml:"log_json"`
	ExchangeRateFallback float64 `mapstructure:"exchange_rate_fallback" yaml:"exchange_rate_fallback"`
	WalletRegisterURL    string  `mapstructure:"wallet_register_url" yaml:"wallet_register_url"`

	Redis      RedisConfig      `mapstructure:"redis" yaml:"redis"`
	Ledger     LedgerConfig     `mapstructure:"ledger" yaml:"ledger"`
	Session    SessionConfig    `mapstructure:"session" yaml:"session"`
	Aggregator AggregatorConfig `mapstructure:"aggregator" yaml:"aggregator"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit" yaml:"ratelimit"`
	Gateway    GatewayConfig    `mapstructure:"gateway" yaml:"gateway"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch" yaml:"dispatch"`
}

// RedisConfig locates the session and record store. An empty Addr selects
// the in-memory stores.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

// LedgerConfig points at the EVM node and the wallet factory.
type LedgerConfig struct {
	RPCURL         string        `mapstructure:"rpc_url" yaml:"rpc_url"`
	FactoryAddress string        `mapstructure:"factory_address" yaml:"factory_address"`
	PrivateKey     string        `mapstructure:"private_key" yaml:"private_key"`
	ChainID        int64         `mapstructure:"chain_id" yaml:"chain_id"`
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout" yaml:"receipt_timeout"`
}

// SessionConfig controls conversation lifetime.
type SessionConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Dir holds console sessions when redis is not configured.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// EncryptionKey seals TempData at rest (32 bytes, hex or base64). Empty disables it.
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key"`
	// FallbackKeys decrypt sessions written before a key rotation.
	FallbackKeys []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
}

// AggregatorConfig bounds concurrent ledger reads.
type AggregatorConfig struct {
	Fanout int `mapstructure:"fanout" yaml:"fanout"`
}

// RateLimitConfig is the per-identity inbound budget. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

// GatewayConfig is the transport gateway replies are posted to.
type GatewayConfig struct {
	URL   string `mapstructure:"url" yaml:"url"`
	Token string `mapstructure:"token" yaml:"token"`
}

// DispatchConfig sizes the queue between the webhook and the per-identity
// mailboxes. Zero values fall back to the defaults.
type DispatchConfig struct {
	QueueSize int           `mapstructure:"queue_size" yaml:"queue_size"`
	Mailbox   int           `mapstructure:"mailbox" yaml:"mailbox"`
	IdleAfter time.Duration `mapstructure:"idle_after" yaml:"idle_after"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("exchange_rate_fallback", DefaultExchangeRate)
	v.SetDefault("wallet_register_url", DefaultWalletRegisterURL)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", DefaultRedisPrefix)

	v.SetDefault("ledger.rpc_url", "")
	v.SetDefault("ledger.factory_address", "")
	v.SetDefault("ledger.private_key", "")
	v.SetDefault("ledger.chain_id", 0)
	v.SetDefault("ledger.receipt_timeout", DefaultReceiptTimeout)

	v.SetDefault("session.timeout", DefaultSessionTimeout)
	v.SetDefault("session.dir", filepath.Join(".coperacha", "sessions"))
	v.SetDefault("session.encryption_key", "")
	v.SetDefault("aggregator.fanout", DefaultFanout)
	v.SetDefault("ratelimit.rps", DefaultRPS)
	v.SetDefault("ratelimit.burst", DefaultBurst)

	v.SetDefault("gateway.url", "")
	v.SetDefault("gateway.token", "")

	v.SetDefault("dispatch.queue_size", DefaultQueueSize)
	v.SetDefault("dispatch.mailbox", DefaultMailbox)
	v.SetDefault("dispatch.idle_after", DefaultMailboxIdle)
}

// Load reads path, if given, then the environment. Without a path it looks
// for coperacha.yaml in the working directory and in ~/.coperacha, and a
// missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("coperacha")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".coperacha"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// The previous deployment only exposed a port.
	if port := os.Getenv("PORT"); port != "" && cfg.ListenAddr == DefaultListenAddr {
		cfg.ListenAddr = ":" + port
	}
	return &cfg, cfg.Validate()
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	var errs []error
	if c.ExchangeRateFallback <= 0 {
		errs = append(errs, fmt.Errorf("exchange_rate_fallback must be > 0, got %v", c.ExchangeRateFallback))
	}
	if c.Session.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("session.timeout must be > 0, got %s", c.Session.Timeout))
	}
	if c.Aggregator.Fanout <= 0 {
		errs = append(errs, fmt.Errorf("aggregator.fanout must be > 0, got %d", c.Aggregator.Fanout))
	}
	if c.Dispatch.QueueSize < 0 || c.Dispatch.Mailbox < 0 {
		errs = append(errs, fmt.Errorf("dispatch sizes must not be negative, got queue_size=%d mailbox=%d",
			c.Dispatch.QueueSize, c.Dispatch.Mailbox))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		errs = append(errs, fmt.Errorf("ratelimit.burst must be > 0 when ratelimit.rps is set"))
	}
	if c.Session.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.Session.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("session.encryption_key: %w", err))
		}
	} else if len(c.Session.FallbackKeys) > 0 {
		errs = append(errs, errors.New("session.fallback_keys requires session.encryption_key"))
	}
	for i, k := range c.Session.FallbackKeys {
		if _, err := middleware.ParseKey(k); err != nil {
			errs = append(errs, fmt.Errorf("session.fallback_keys[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// RequireLedger checks the settings needed to talk to a real node.
func (c *Config) RequireLedger() error {
	var errs []error
	if c.Ledger.RPCURL == "" {
		errs = append(errs, errors.New("ledger.rpc_url is required"))
	}
	if c.Ledger.FactoryAddress == "" {
		errs = append(errs, errors.New("ledger.factory_address is required"))
	}
	return errors.Join(errs...)
}

const redacted = "********"

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Ledger.PrivateKey != "" {
		c.Ledger.PrivateKey = redacted
	}
	if c.Redis.Password != "" {
		c.Redis.Password = redacted
	}
	if c.Gateway.Token != "" {
		c.Gateway.Token = redacted
	}
	if c.Session.EncryptionKey != "" {
		c.Session.EncryptionKey = redacted
	}
	if len(c.Session.FallbackKeys) > 0 {
		keys := make([]string, len(c.Session.FallbackKeys))
		for i := range keys {
			keys[i] = redacted
		}
		c.Session.FallbackKeys = keys
	}
	return c
}
