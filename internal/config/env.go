package config

import (
	"os"
	"strconv"
)

// FromEnv overlays POND_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("POND_QUERY_ADDR"); v != "" {
		cfg.QueryAddr = v
	}
	if v := os.Getenv("POND_INGEST_ADDR"); v != "" {
		cfg.IngestAddr = v
	}
	if v := os.Getenv("POND_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("POND_MAX_RECORDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRecords = n
		}
	}
	if v := os.Getenv("POND_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxBytes = n
		}
	}
	if v := os.Getenv("POND_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("POND_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}
