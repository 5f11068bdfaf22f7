// Package config provides loading and environment overlay for Pond
// runtime configuration. It exposes a Default() baseline, JSON/YAML file
// loading, and a POND_* env overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/pond.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
package config
