package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// QueryAddr is the TCP address the query protocol listens on.
	QueryAddr string `json:"queryAddr" yaml:"queryAddr"`
	// IngestAddr is the UDP address log datagrams are received on.
	IngestAddr string `json:"ingestAddr" yaml:"ingestAddr"`
	// HTTPAddr is the admin API listen address. Empty disables it.
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`

	// MaxRecords bounds the store by record count. 0 disables the bound.
	MaxRecords int `json:"maxRecords" yaml:"maxRecords"`
	// MaxBytes bounds the store by the sum of raw record sizes. 0 disables
	// the bound. At least one of the two bounds must be set.
	MaxBytes int64 `json:"maxBytes" yaml:"maxBytes"`

	LogLevel  string `json:"logLevel" yaml:"logLevel"`
	LogFormat string `json:"logFormat" yaml:"logFormat"`
}

// Built-in defaults. 5480 is the query port, 5479 the ingest port.
const (
	DefaultQueryAddr  = ":5480"
	DefaultIngestAddr = ":5479"
	DefaultHTTPAddr   = ":8080"
	DefaultMaxRecords = 1 << 16
	DefaultMaxBytes   = 64 << 20
)

// Default returns built-in defaults.
func Default() Config {
	return Config{
		QueryAddr:  DefaultQueryAddr,
		IngestAddr: DefaultIngestAddr,
		HTTPAddr:   DefaultHTTPAddr,
		MaxRecords: DefaultMaxRecords,
		MaxBytes:   DefaultMaxBytes,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Validate rejects configurations the runtime cannot honor.
func (c Config) Validate() error {
	if c.MaxRecords <= 0 && c.MaxBytes <= 0 {
		return fmt.Errorf("config: one of maxRecords or maxBytes must be positive")
	}
	if c.QueryAddr == "" {
		return fmt.Errorf("config: queryAddr is required")
	}
	return nil
}

// Load reads configuration from a JSON or YAML file (by extension). If
// path is empty, it returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}
