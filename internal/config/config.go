// Package config loads settings for the jqawk server/cache/history
// subsystems from jqawk.yaml, environment variables, and built-in
// defaults, via viper. The CLI's core positional surface (PROGRAM,
// INPUT, -f, -r, --debug, --json) never touches this package — it
// only matters to `jqawk serve`, `jqawk token` and `jqawk history`.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full settings surface for the long-running host
// commands.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
}

// ServerConfig configures the HTTP execution service.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// RedisConfig configures the optional Redis-backed compiled-program
// cache. Addr is empty unless the host opted into Redis; an empty
// Addr means the in-memory cache is used instead.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// HistoryConfig configures the run-history store. DSN's scheme
// selects the database/sql driver: "postgres://" or "postgresql://"
// uses lib/pq, anything else is opened with sqlite3.
type HistoryConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// AuthConfig configures JWT issuance/verification for the HTTP
// service.
type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	PassphraseHash string `mapstructure:"passphrase_hash" yaml:"passphrase_hash"`
}

// CacheConfig configures the compiled-program cache's entry lifetime.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds" yaml:"ttl_seconds"`
}

// Load reads jqawk.yaml (if present) from the current directory, with
// JQAWK_-prefixed environment variables taking precedence over the
// file and built-in defaults filling in anything left unset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("history.dsn", "jqawk_history.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.passphrase_hash", "")
	v.SetDefault("cache.ttl_seconds", 300)

	v.SetConfigName("jqawk")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("JQAWK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read jqawk.yaml: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
