package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/OneInX/Manifest-InX/internal/metrics"
	"github.com/OneInX/Manifest-InX/internal/pipeline"
	"github.com/OneInX/Manifest-InX/internal/release"
	"github.com/OneInX/Manifest-InX/internal/transport/grpcapi"
	"github.com/OneInX/Manifest-InX/internal/transport/httpapi"
)

func newServeCmd(configPath *string) *cobra.Command {
	var httpAddr, grpcAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the insight API over HTTP and gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return exitWith(2, err)
			}
			defer a.close()
			if cmd.Flags().Changed("http-addr") {
				a.cfg.Server.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("grpc-addr") {
				a.cfg.Server.GRPCAddr = grpcAddr
			}
			if a.cfg.Server.HTTPAddr == "" && a.cfg.Server.GRPCAddr == "" {
				return exitWith(2, errors.New("serve: no listener configured"))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides config, empty disables)")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (overrides config, empty disables)")
	return cmd
}

// serve runs every configured listener and the release watcher until ctx is
// done or one of them fails.
func (a *app) serve(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	e, err := a.openEngine(pipeline.WithMetrics(m))
	if err != nil {
		return exitWith(1, err)
	}
	if e.Version() == "" {
		return exitWith(1, errors.New("serve: release manifest has no version"))
	}
	a.logger.Info("release verified",
		zap.String("version", e.Version()),
		zap.String("manifest_source", string(e.Release().ManifestSource)))

	headerTimeout, err := a.cfg.Server.HeaderTimeout()
	if err != nil {
		return exitWith(2, err)
	}

	var watcher *release.Watcher
	if a.cfg.Release.Watch {
		if watcher, err = release.NewWatcher(e.Guard(), a.engineConfig().Release, a.logger); err != nil {
			return err
		}
	}

	var grpcLn, httpLn net.Listener
	if addr := a.cfg.Server.GRPCAddr; addr != "" {
		if grpcLn, err = httpapi.Listen(addr); err != nil {
			return exitWith(2, err)
		}
	}
	if addr := a.cfg.Server.HTTPAddr; addr != "" {
		if httpLn, err = httpapi.Listen(addr); err != nil {
			if grpcLn != nil {
				_ = grpcLn.Close()
			}
			return exitWith(2, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	var grpcSrv *grpcapi.Server
	if grpcLn != nil {
		grpcSrv = grpcapi.NewServer(e, a.logger)
		g.Go(func() error { return grpcSrv.Serve(ctx, grpcLn) })
	}
	if httpLn != nil {
		srv := httpapi.NewServer(httpapi.NewRouter(httpapi.New(e, a.logger, reg)), headerTimeout, a.logger)
		g.Go(func() error { return srv.Serve(ctx, httpLn) })
	}

	if watcher != nil {
		watcher.OnFailure = func(err error) {
			a.logIntegrity(e, err)
			if grpcSrv != nil {
				grpcSrv.SyncHealth()
			}
		}
		g.Go(func() error { return watcher.Run(ctx) })
	}

	return g.Wait()
}
