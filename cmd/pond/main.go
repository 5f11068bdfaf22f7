package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/pond/internal/cmd/client"
	serverrun "github.com/rzbill/pond/internal/cmd/server"
	cfgpkg "github.com/rzbill/pond/internal/config"
	logpkg "github.com/rzbill/pond/pkg/log"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pond",
		Short: "Pond in-memory log record store",
		Long:  "Pond keeps recent log records in a bounded in-memory store and serves filtered, optionally live-following queries over them.",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the pond server (ingest, query, and HTTP admin)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			cfg := cfgpkg.Default()
			if configPath != "" {
				loaded, err := cfgpkg.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			cfgpkg.FromEnv(&cfg)

			// Flags override file and environment.
			if v, _ := cmd.Flags().GetString("query"); cmd.Flags().Changed("query") {
				cfg.QueryAddr = v
			}
			if v, _ := cmd.Flags().GetString("ingest"); cmd.Flags().Changed("ingest") {
				cfg.IngestAddr = v
			}
			if v, _ := cmd.Flags().GetString("http"); cmd.Flags().Changed("http") {
				cfg.HTTPAddr = v
			}
			if v, _ := cmd.Flags().GetInt("max-records"); cmd.Flags().Changed("max-records") {
				cfg.MaxRecords = v
			}
			if v, _ := cmd.Flags().GetInt64("max-bytes"); cmd.Flags().Changed("max-bytes") {
				cfg.MaxBytes = v
			}
			if v, _ := cmd.Flags().GetString("log-level"); cmd.Flags().Changed("log-level") {
				cfg.LogLevel = v
			}
			if v, _ := cmd.Flags().GetString("log-format"); cmd.Flags().Changed("log-format") {
				cfg.LogFormat = v
			}

			lvl, err := logpkg.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			format := logpkg.TextFormat
			switch cfg.LogFormat {
			case "json":
				format = logpkg.JSONFormat
			case "text", "":
			default:
				return fmt.Errorf("invalid log format %q; use text|json", cfg.LogFormat)
			}
			logger := logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormat(format))

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg, Logger: logger}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Config file (JSON or YAML)")
	serverStartCmd.Flags().String("query", cfgpkg.DefaultQueryAddr, "Query listen address")
	serverStartCmd.Flags().String("ingest", cfgpkg.DefaultIngestAddr, "Ingest listen address (empty disables ingest)")
	serverStartCmd.Flags().String("http", cfgpkg.DefaultHTTPAddr, "HTTP admin listen address (empty disables)")
	serverStartCmd.Flags().Int("max-records", cfgpkg.DefaultMaxRecords, "Record count bound (0 = unbounded by count)")
	serverStartCmd.Flags().Int64("max-bytes", cfgpkg.DefaultMaxBytes, "Raw byte bound (0 = unbounded by bytes)")
	serverStartCmd.Flags().String("log-level", "info", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "text", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	rootCmd.AddCommand(clientcmd.NewQueryCommand())
	rootCmd.AddCommand(clientcmd.NewSendCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
