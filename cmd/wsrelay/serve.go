// File: cmd/wsrelay/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The serve command: relay plus admin HTTP server under one errgroup.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-relay/control"
	"github.com/momentics/hioload-relay/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd(getenv func(string) string) *cobra.Command {
	opts := envDefaults(getenv)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.host, "host", opts.host, "bind host (WSRELAY_HOST)")
	f.IntVarP(&opts.port, "port", "p", opts.port, "bind port, 0 for ephemeral (WSRELAY_PORT)")
	f.StringVar(&opts.adminAddr, "admin-addr", opts.adminAddr, "metrics and debug HTTP address, empty to disable (WSRELAY_ADMIN_ADDR)")
	f.BoolVar(&opts.noReflect, "no-reflect", opts.noReflect, "do not echo messages back to their sender (WSRELAY_NO_REFLECT)")
	f.Int64Var(&opts.maxMessageSize, "max-message-size", opts.maxMessageSize, "largest accepted frame payload in bytes (WSRELAY_MAX_MESSAGE_SIZE)")
	f.IntVar(&opts.maxPendingBytes, "max-pending-bytes", opts.maxPendingBytes, "outbound bytes buffered per client before it is dropped (WSRELAY_MAX_PENDING_BYTES)")
	f.StringVar(&opts.logFormat, "log-format", opts.logFormat, "log format: text or json (WSRELAY_LOG_FORMAT)")
	f.StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level: debug, info, warn, error (WSRELAY_LOG_LEVEL)")

	return cmd
}

// runServe runs the relay and the admin server until a signal, ctx
// cancellation or the first fatal error.
func runServe(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger(os.Stderr, opts.logFormat, opts.logLevel)
	if err != nil {
		return err
	}

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := control.NewMetrics(control.WithRuntimeCollectors(true))
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)

	relay, err := server.New(opts.config(),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithProbes(probes),
	)
	if err != nil {
		logger.Error("relay.start", "err", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return relay.Run(gctx)
	})

	if opts.adminAddr != "" {
		srv := &http.Server{
			Addr:              opts.adminAddr,
			Handler:           control.NewAdminRouter(metrics, probes),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("admin.listening", "addr", opts.adminAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("relay.crash", "err", err)
		return err
	}
	logger.Info("relay.stopped")
	return nil
}
