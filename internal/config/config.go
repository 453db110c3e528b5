// Package config loads runtime configuration: defaults first, then an
// optional nugget-config.yaml, then NUGGET_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Run modes. Fake mode wires the deterministic in-process backends and
// needs no credentials.
const (
	ModeFake = "fake"
	ModeLive = "live"
)

// Config is the resolved runtime configuration.
type Config struct {
	Mode     string
	Property string

	Server    Server
	LLM       LLM
	Analytics Analytics
	Store     Store
	Log       Log
}

// Server configures the HTTP listener.
type Server struct {
	Port        int
	CORSOrigins []string
}

// LLM configures the completion client.
type LLM struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Analytics configures the live analytics backend.
type Analytics struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	QPS        float64
	Burst      int
	MaxRetries int
}

// Store configures conversation persistence.
type Store struct {
	Backend string // "file" or "memory"
	Dir     string // file backend root; empty uses the OS temp dir
	Timeout time.Duration
}

// Log configures logging.
type Log struct {
	Level string
}

// IsFake reports whether the deterministic in-process backends are wired.
func (c *Config) IsFake() bool { return c.Mode == ModeFake }

// Load resolves configuration from the default search paths ($HOME and the
// working directory).
func Load() (*Config, error) { return LoadFile("") }

// LoadFile resolves configuration, reading the given file when path is
// non-empty. A missing default config file is not an error; env overrides
// and defaults still apply.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nugget-config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("NUGGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Mode:     strings.ToLower(v.GetString("mode")),
		Property: v.GetString("property"),
		Server: Server{
			Port:        v.GetInt("server.port"),
			CORSOrigins: v.GetStringSlice("server.cors_origins"),
		},
		LLM: LLM{
			BaseURL:    v.GetString("llm.base_url"),
			APIKey:     v.GetString("llm.api_key"),
			Model:      v.GetString("llm.model"),
			Timeout:    v.GetDuration("llm.timeout"),
			MaxRetries: v.GetInt("llm.max_retries"),
		},
		Analytics: Analytics{
			BaseURL:    v.GetString("analytics.base_url"),
			Token:      v.GetString("analytics.token"),
			Timeout:    v.GetDuration("analytics.timeout"),
			QPS:        v.GetFloat64("analytics.qps"),
			Burst:      v.GetInt("analytics.burst"),
			MaxRetries: v.GetInt("analytics.max_retries"),
		},
		Store: Store{
			Backend: strings.ToLower(v.GetString("store.backend")),
			Dir:     v.GetString("store.dir"),
			Timeout: v.GetDuration("store.timeout"),
		},
		Log: Log{
			Level: v.GetString("log.level"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeFake)
	v.SetDefault("property", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 6*time.Second)
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("analytics.base_url", "")
	v.SetDefault("analytics.token", "")
	v.SetDefault("analytics.timeout", 20*time.Second)
	v.SetDefault("analytics.qps", 5.0)
	v.SetDefault("analytics.burst", 5)
	v.SetDefault("analytics.max_retries", 2)

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.dir", "")
	v.SetDefault("store.timeout", 3*time.Second)

	v.SetDefault("log.level", "info")
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeFake, ModeLive:
	default:
		return fmt.Errorf("unknown mode %q (want %q or %q)", c.Mode, ModeFake, ModeLive)
	}
	switch c.Store.Backend {
	case "file", "memory":
	default:
		return fmt.Errorf("unknown store backend %q (want \"file\" or \"memory\")", c.Store.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Mode == ModeLive {
		if c.Analytics.BaseURL == "" {
			return fmt.Errorf("live mode requires analytics.base_url")
		}
		if c.LLM.APIKey == "" {
			return fmt.Errorf("live mode requires llm.api_key")
		}
	}
	return nil
}
