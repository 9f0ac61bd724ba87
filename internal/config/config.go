// Package config handles configuration parsing from CLI flags and YAML files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/zkutil/keeper-lb/internal/balancer"
)

// Config holds all configuration for the balancer.
type Config struct {
	// Name identifies the cluster configuration.
	Name string `yaml:"name"`
	// Hosts is the ordered list of coordination nodes, each host:port or
	// secure://host:port. Order matters for the in_order and
	// first_or_random policies.
	Hosts []string `yaml:"hosts"`
	// Policy is the load balancing policy.
	Policy string `yaml:"policy"`
	// FallbackSessionMin is the lower bound of the shortened session
	// lifetime used on sub-optimal endpoints.
	FallbackSessionMin time.Duration `yaml:"fallback_session_min"`
	// FallbackSessionMax is the upper bound of the shortened session
	// lifetime used on sub-optimal endpoints.
	FallbackSessionMax time.Duration `yaml:"fallback_session_max"`
	// SessionTimeout is the coordination session timeout.
	SessionTimeout time.Duration `yaml:"session_timeout"`
	// ConnectTimeout bounds each connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// MetricsPort is the metrics server port.
	MetricsPort int `yaml:"metrics_port"`
	// LogLevel is the logging level (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// LogFormat is the log format (json, text).
	LogFormat string `yaml:"log_format"`
	// ConfigFile is the optional config file path.
	ConfigFile string `yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:               "default",
		Policy:             string(balancer.PolicyRandom),
		FallbackSessionMin: 30 * time.Second,
		FallbackSessionMax: 60 * time.Second,
		SessionTimeout:     30 * time.Second,
		ConnectTimeout:     10 * time.Second,
		MetricsPort:        9090,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// ParseFlags parses command line flags and returns a Config.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	pflag.StringVar(&cfg.Name, "name", cfg.Name, "Cluster configuration name")
	pflag.StringSliceVar(&cfg.Hosts, "hosts", nil, "Comma-separated list of coordination nodes (host:port or secure://host:port)")
	pflag.StringVar(&cfg.Policy, "policy", cfg.Policy, "Load balancing policy (random, round_robin, first_or_random, in_order, nearest_hostname, hostname_levenshtein_distance)")
	pflag.DurationVar(&cfg.FallbackSessionMin, "fallback-session-min", cfg.FallbackSessionMin, "Minimum fallback session lifetime for sub-optimal endpoints")
	pflag.DurationVar(&cfg.FallbackSessionMax, "fallback-session-max", cfg.FallbackSessionMax, "Maximum fallback session lifetime for sub-optimal endpoints")
	pflag.DurationVar(&cfg.SessionTimeout, "session-timeout", cfg.SessionTimeout, "Coordination session timeout")
	pflag.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "Connection attempt timeout")
	pflag.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "Metrics server port")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	pflag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, text)")
	pflag.StringVar(&cfg.ConfigFile, "config", "", "Config file path (YAML)")

	pflag.Parse()

	// Load from environment variables (env vars take precedence over defaults, but CLI flags take precedence over env vars)
	loadFromEnv(cfg)

	// If config file specified, load it first, then override with env vars and flags
	if cfg.ConfigFile != "" {
		fileCfg, err := LoadFromFile(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		loadFromEnv(fileCfg)
		cfg = mergeConfigs(fileCfg, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// mergeConfigs merges file config with CLI config. CLI flags take precedence.
func mergeConfigs(file, cli *Config) *Config {
	result := *file

	// Check if flag was explicitly set
	pflag.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "name":
			result.Name = cli.Name
		case "hosts":
			result.Hosts = cli.Hosts
		case "policy":
			result.Policy = cli.Policy
		case "fallback-session-min":
			result.FallbackSessionMin = cli.FallbackSessionMin
		case "fallback-session-max":
			result.FallbackSessionMax = cli.FallbackSessionMax
		case "session-timeout":
			result.SessionTimeout = cli.SessionTimeout
		case "connect-timeout":
			result.ConnectTimeout = cli.ConnectTimeout
		case "metrics-port":
			result.MetricsPort = cli.MetricsPort
		case "log-level":
			result.LogLevel = cli.LogLevel
		case "log-format":
			result.LogFormat = cli.LogFormat
		}
	})

	return &result
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name must not be empty")
	}

	if len(c.Hosts) == 0 {
		return fmt.Errorf("at least one coordination node is required (--hosts)")
	}

	for _, host := range c.Hosts {
		if strings.TrimSpace(host) == "" {
			return fmt.Errorf("empty host in hosts list")
		}
	}

	if _, err := balancer.ParsePolicy(c.Policy); err != nil {
		return err
	}

	if c.FallbackSessionMin < 0 {
		return fmt.Errorf("fallback-session-min must not be negative")
	}

	if c.FallbackSessionMax < c.FallbackSessionMin {
		return fmt.Errorf("fallback-session-max must be >= fallback-session-min")
	}

	if c.SessionTimeout <= 0 {
		return fmt.Errorf("session-timeout must be positive")
	}

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect-timeout must be positive")
	}

	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be trace, debug, info, warn, or error)", c.LogLevel)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.LogFormat)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables with KEEPER_LB_ prefix.
// Environment variables take precedence over defaults but CLI flags take precedence over env vars.
func loadFromEnv(cfg *Config) {
	// Helper functions for parsing
	getEnvString := func(key string) (string, bool) {
		v := os.Getenv("KEEPER_LB_" + key)
		return v, v != ""
	}

	getEnvInt := func(key string) (int, bool) {
		if v, ok := getEnvString(key); ok {
			if i, err := strconv.Atoi(v); err == nil {
				return i, true
			}
		}
		return 0, false
	}

	getEnvDuration := func(key string) (time.Duration, bool) {
		if v, ok := getEnvString(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				return d, true
			}
		}
		return 0, false
	}

	// Only apply env vars if CLI flag was not explicitly set
	applyIfNotSet := func(flagName string, apply func()) {
		flagSet := false
		pflag.Visit(func(f *pflag.Flag) {
			if f.Name == flagName {
				flagSet = true
			}
		})
		if !flagSet {
			apply()
		}
	}

	if v, ok := getEnvString("NAME"); ok {
		applyIfNotSet("name", func() { cfg.Name = v })
	}
	if v, ok := getEnvString("HOSTS"); ok {
		applyIfNotSet("hosts", func() {
			cfg.Hosts = strings.Split(v, ",")
			for i, host := range cfg.Hosts {
				cfg.Hosts[i] = strings.TrimSpace(host)
			}
		})
	}
	if v, ok := getEnvString("POLICY"); ok {
		applyIfNotSet("policy", func() { cfg.Policy = v })
	}
	if v, ok := getEnvDuration("FALLBACK_SESSION_MIN"); ok {
		applyIfNotSet("fallback-session-min", func() { cfg.FallbackSessionMin = v })
	}
	if v, ok := getEnvDuration("FALLBACK_SESSION_MAX"); ok {
		applyIfNotSet("fallback-session-max", func() { cfg.FallbackSessionMax = v })
	}
	if v, ok := getEnvDuration("SESSION_TIMEOUT"); ok {
		applyIfNotSet("session-timeout", func() { cfg.SessionTimeout = v })
	}
	if v, ok := getEnvDuration("CONNECT_TIMEOUT"); ok {
		applyIfNotSet("connect-timeout", func() { cfg.ConnectTimeout = v })
	}
	if v, ok := getEnvInt("METRICS_PORT"); ok {
		applyIfNotSet("metrics-port", func() { cfg.MetricsPort = v })
	}
	if v, ok := getEnvString("LOG_LEVEL"); ok {
		applyIfNotSet("log-level", func() { cfg.LogLevel = v })
	}
	if v, ok := getEnvString("LOG_FORMAT"); ok {
		applyIfNotSet("log-format", func() { cfg.LogFormat = v })
	}
}
