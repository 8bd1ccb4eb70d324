package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete generator configuration.
type Config struct {
	DNS     DNSConfig     `yaml:"dns"`
	Circuit CircuitConfig `yaml:"circuit"`
	Logging LoggingConfig `yaml:"logging"`
}

// DNSConfig holds key record resolution configuration.
type DNSConfig struct {
	Nameservers []string      `yaml:"nameservers"`
	DNSSEC      bool          `yaml:"dnssec"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CircuitConfig holds the circuit shape parameters.
type CircuitConfig struct {
	MaxHeaderLength       int    `yaml:"max_header_length"`
	MaxBodyLength         int    `yaml:"max_body_length"`
	IncludeBody           bool   `yaml:"include_body"`
	ShaPrecomputeSelector string `yaml:"sha_precompute_selector"`
	MinRSAKeyBits         int    `yaml:"min_rsa_key_bits"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvVars()

	return cfg, nil
}

// applyDefaults sets default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.DNS.Timeout = 5 * time.Second
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("RELAYER_DNS_NAMESERVERS"); v != "" {
		c.DNS.Nameservers = strings.Split(v, ",")
	}
	if v := os.Getenv("RELAYER_DNS_DNSSEC"); v != "" {
		c.DNS.DNSSEC = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RELAYER_DNS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DNS.Timeout = d
		}
	}

	if v := os.Getenv("RELAYER_MAX_HEADER_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Circuit.MaxHeaderLength = n
		}
	}
	if v := os.Getenv("RELAYER_MAX_BODY_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Circuit.MaxBodyLength = n
		}
	}
	if v := os.Getenv("RELAYER_INCLUDE_BODY"); v != "" {
		c.Circuit.IncludeBody = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RELAYER_SHA_PRECOMPUTE_SELECTOR"); v != "" {
		c.Circuit.ShaPrecomputeSelector = v
	}

	if v := os.Getenv("RELAYER_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
