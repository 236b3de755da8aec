package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tasktracker/internal/app"
	"tasktracker/internal/server"
	"tasktracker/internal/telemetry"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			ctx := cmd.Context()
			logger := telemetry.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			tracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
				Exporter: cfg.Telemetry.Traces,
				Endpoint: cfg.Telemetry.OTLPEndpoint,
				Version:  version,
				Writer:   os.Stderr,
			})
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tracing.Shutdown(shutdownCtx)
			}()
			metrics := telemetry.NewMetrics()

			rt, err := app.Open(ctx, cfg, app.Deps{Logger: logger, Tracer: tracing.Tracer, Metrics: metrics})
			if err != nil {
				return err
			}
			defer rt.Close()

			handler, err := server.New(server.Config{
				Engine:   rt.Engine,
				BasePath: cfg.Server.BasePath,
				Version:  version,
				Logger:   logger,
				Metrics:  metrics,
				Tracer:   tracing.Tracer,
			})
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return err
			}
			srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			fmt.Fprintf(os.Stderr, "Serving tracker API on http://%s%s (OpenAPI at %s/openapi.json, metrics at /metrics)\n",
				ln.Addr(), cfg.Server.BasePath, cfg.Server.BasePath)
			logger.Info("server started", "addr", ln.Addr().String(), "store", cfg.Store.Path)
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/api/v1", "API base path (overrides config)")
	return cmd
}
