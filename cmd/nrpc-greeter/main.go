// Command nrpc-greeter serves the example Greeter over gRPC and WebSocket,
// with reflection, health checks and Prometheus metrics.
//
//	nrpc-greeter --addr localhost:50051 --http-addr localhost:8080
//	nrpcgen call --server localhost:50051 greeter.Greeter/say_hello -d '"World"'
//	nrpcgen call --server ws://localhost:8080/nrpc -I testdata/protos --proto greeter/greeter.proto \
//	    greeter.Greeter/say_hello -d '"World"'
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	apperrors "github.com/shhac/nrpc/internal/errors"
	"github.com/shhac/nrpc/internal/greeter"
	"github.com/shhac/nrpc/internal/logging"
	"github.com/shhac/nrpc/middleware"
	"github.com/shhac/nrpc/rpc"
	"github.com/shhac/nrpc/transport/grpctransport"
	"github.com/shhac/nrpc/transport/wstransport"
)

type options struct {
	addr     string
	httpAddr string
	trace    bool
	debug    bool
}

func main() {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "nrpc-greeter",
		Short:         "Serve the example Greeter",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "localhost:50051", "gRPC listen address")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", "localhost:8080", "HTTP listen address for WebSocket calls and /metrics; empty disables")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "print a span per call to stderr")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "debug logging")

	if err := cmd.Execute(); err != nil {
		e := apperrors.Classify(err)
		fmt.Fprint(os.Stderr, e.Format(opts.debug))
		os.Exit(e.ExitCode)
	}
}

func serve(ctx context.Context, opts *options, stderr io.Writer) error {
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if opts.debug {
		logger = logging.NewCLILogger(stderr, true)
	}

	tp, shutdownTracing, err := tracerProvider(opts.trace, stderr)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := middleware.NewMetrics(reg)
	if err != nil {
		return err
	}

	router := rpc.NewRouter(logger)
	router.Use(middleware.Logging(logger), metrics.Middleware(), middleware.Tracing(tp))
	if err := router.Register(greeter.NewService()); err != nil {
		return err
	}
	files, err := greeter.Files()
	if err != nil {
		return err
	}

	srv := grpctransport.NewServer(router, logger, grpc.MaxRecvMsgSize(64<<20))
	grpctransport.RegisterReflection(srv, router, files)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)
	healthServer.SetServingStatus(greeter.Descriptor, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %v", apperrors.ErrConnectionFailed, opts.addr, err)
	}
	errc := make(chan error, 2)
	go func() { errc <- srv.Serve(lis) }()
	logger.Info("gRPC server listening", slog.String("addr", lis.Addr().String()), slog.Any("services", router.Services()))

	var httpServer *http.Server
	if opts.httpAddr != "" {
		ws := wstransport.NewHandler(router, logger)
		ws.Prefix = "/nrpc"
		mux := http.NewServeMux()
		mux.Handle("/nrpc/", ws)
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		httpServer = &http.Server{Addr: opts.httpAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
		logger.Info("HTTP server listening", slog.String("addr", opts.httpAddr))
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		srv.Stop()
		return err
	}

	healthServer.Shutdown()
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}
	srv.GracefulStop()
	return nil
}

// tracerProvider returns a provider exporting spans to w when enabled, and
// a no-op one otherwise.
func tracerProvider(enabled bool, w io.Writer) (trace.TracerProvider, func(), error) {
	if !enabled {
		return noop.NewTracerProvider(), func() {}, nil
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return tp, func() { _ = tp.Shutdown(context.Background()) }, nil
}
