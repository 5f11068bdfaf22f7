// Package serverrun boots a Pond instance: the store runtime, the UDP
// ingest receiver, the TCP query server, and the HTTP admin surface.
package serverrun

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	cfgpkg "github.com/rzbill/pond/internal/config"
	"github.com/rzbill/pond/internal/receiver"
	"github.com/rzbill/pond/internal/runtime"
	"github.com/rzbill/pond/internal/server"
	"github.com/rzbill/pond/internal/server/httpapi"
	logpkg "github.com/rzbill/pond/pkg/log"
)

// Options for Run.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// Run starts all listeners and blocks until ctx is cancelled or a signal
// arrives. It layers its own signal context over the provided one so
// callers don't have to pass a signal-aware context.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := opts.Logger
	if logger == nil {
		logger = newProcessLogger(opts.Config)
	}

	rt, err := runtime.Open(runtime.Options{Config: opts.Config, Logger: logger})
	if err != nil {
		return err
	}

	logger.Info("starting pond server",
		logpkg.Str("query", opts.Config.QueryAddr),
		logpkg.Str("ingest", opts.Config.IngestAddr),
		logpkg.Str("http", opts.Config.HTTPAddr),
		logpkg.Int("max_records", opts.Config.MaxRecords),
		logpkg.Int64("max_bytes", opts.Config.MaxBytes),
	)

	qsrv := server.New(server.Options{Addr: opts.Config.QueryAddr, Runtime: rt, Logger: logger})
	if err := qsrv.Listen(); err != nil {
		return err
	}

	var rcv *receiver.Receiver
	if opts.Config.IngestAddr != "" {
		rcv, err = receiver.Listen(receiver.Options{Addr: opts.Config.IngestAddr, Runtime: rt, Logger: logger})
		if err != nil {
			_ = qsrv.Close()
			return err
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := qsrv.Serve(sctx); err != nil && sctx.Err() == nil {
			logger.Error("query server failed", logpkg.Err(err))
		}
	}()

	if rcv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rcv.Run()
		}()
	}

	var hsrv *httpapi.Server
	if opts.Config.HTTPAddr != "" {
		hsrv = httpapi.New(rt)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hsrv.ListenAndServe(sctx, opts.Config.HTTPAddr); err != nil && sctx.Err() == nil {
				logger.Error("http server failed", logpkg.Err(err))
			}
		}()
	}

	<-sctx.Done()
	logger.Info("shutting down")
	_ = qsrv.Close()
	if rcv != nil {
		_ = rcv.Close()
	}
	if hsrv != nil {
		hsrv.Close()
	}
	wg.Wait()
	return nil
}

// newProcessLogger builds the process-wide logger from the config's
// log settings, falling back to info/text on bad values.
func newProcessLogger(cfg cfgpkg.Config) logpkg.Logger {
	lvl, err := logpkg.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logpkg.InfoLevel
	}
	format := logpkg.TextFormat
	if cfg.LogFormat == "json" {
		format = logpkg.JSONFormat
	}
	return logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormat(format))
}
