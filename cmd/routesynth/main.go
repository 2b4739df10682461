package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/signalsfoundry/assumed-cables/internal/api"
	"github.com/signalsfoundry/assumed-cables/internal/config"
	"github.com/signalsfoundry/assumed-cables/internal/logging"
	"github.com/signalsfoundry/assumed-cables/internal/observability"
	"github.com/signalsfoundry/assumed-cables/internal/opsrpc"
	"github.com/signalsfoundry/assumed-cables/internal/scenario"
	"github.com/signalsfoundry/assumed-cables/internal/store"
	"github.com/signalsfoundry/assumed-cables/model"
	"github.com/signalsfoundry/assumed-cables/timectrl"
)

const shutdownTimeout = 5 * time.Second

// listeners holds the sockets run serves on. GRPC and Metrics may be nil.
type listeners struct {
	HTTP    net.Listener
	GRPC    net.Listener
	Metrics net.Listener
}

func (l listeners) close() {
	for _, lis := range []net.Listener{l.HTTP, l.GRPC, l.Metrics} {
		if lis != nil {
			_ = lis.Close()
		}
	}
}

func main() {
	dotenvErr := godotenv.Load()

	cfg, err := config.Parse("routesynth", os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "routesynth: %v\n", err)
		os.Exit(2)
	}

	log := logging.New(cfg.LoggingConfig())
	ctx := context.Background()
	if dotenvErr != nil && !errors.Is(dotenvErr, os.ErrNotExist) {
		log.Warn(ctx, "failed to read .env", logging.Err(dotenvErr))
	}

	lns, err := listen(cfg)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.Err(err))
		os.Exit(1)
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(stopCtx, cfg, log, lns); err != nil {
		log.Error(ctx, "routesynth exited", logging.Err(err))
		os.Exit(1)
	}
}

func listen(cfg config.Config) (listeners, error) {
	var lns listeners
	var err error
	if lns.HTTP, err = net.Listen("tcp", cfg.HTTPAddr); err != nil {
		return listeners{}, fmt.Errorf("http %s: %w", cfg.HTTPAddr, err)
	}
	if cfg.GRPCAddr != "" {
		if lns.GRPC, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
			lns.close()
			return listeners{}, fmt.Errorf("grpc %s: %w", cfg.GRPCAddr, err)
		}
	}
	if cfg.MetricsAddr != "" {
		if lns.Metrics, err = net.Listen("tcp", cfg.MetricsAddr); err != nil {
			lns.close()
			return listeners{}, fmt.Errorf("metrics %s: %w", cfg.MetricsAddr, err)
		}
	}
	return lns, nil
}

// run serves the HTTP API, the ops gRPC server and the metrics endpoint until
// ctx is cancelled or a server fails, then shuts everything down.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lns listeners) error {
	defer lns.close()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	apiCollector, err := observability.NewAPICollector(reg)
	if err != nil {
		return fmt.Errorf("api metrics: %w", err)
	}
	rebuildCollector, err := observability.NewRebuildCollector(reg)
	if err != nil {
		return fmt.Errorf("rebuild metrics: %w", err)
	}

	st, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := []scenario.Option{
		scenario.WithSynthesisPolicy(cfg.SynthesisPolicy()),
		scenario.WithVariants(cfg.Variants...),
		scenario.WithParallelVariants(cfg.ParallelVariants),
		scenario.WithMetricsRecorder(rebuildCollector),
	}
	ownerPolicy, err := cfg.OwnerPolicy()
	if err != nil {
		return err
	}
	opts = append(opts, scenario.WithOwnerPolicy(ownerPolicy))

	var ops *opsrpc.Server
	if lns.GRPC != nil {
		ops = opsrpc.NewServer(log, apiCollector)
		opts = append(opts, scenario.WithStateListener(ops.SetRebuilding))
	}

	rebuilder, err := scenario.NewRebuilder(st, log, opts...)
	if err != nil {
		return fmt.Errorf("rebuilder: %w", err)
	}
	reader := scenario.NewReader(st, log, timectrl.System{})
	router := api.NewRouter(api.NewHandler(rebuilder, reader, log), log, apiCollector)

	errCh := make(chan error, 3)

	httpSrv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info(ctx, "starting HTTP API", logging.String("addr", lns.HTTP.Addr().String()))
		if err := httpSrv.Serve(lns.HTTP); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsSrv *http.Server
	if lns.Metrics != nil {
		metricsSrv = serveMetrics(lns.Metrics, apiCollector, ops, log, errCh)
	}

	if ops != nil {
		go func() {
			if err := ops.Serve(lns.GRPC); err != nil {
				errCh <- fmt.Errorf("ops grpc server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down routesynth")
	case runErr = <-errCh:
		log.Error(context.Background(), "server failed, shutting down", logging.Err(runErr))
	}

	if ops != nil {
		ops.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "http shutdown failed", logging.Err(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return runErr
}

func serveMetrics(lis net.Listener, collector *observability.APICollector, ops *opsrpc.Server, log logging.Logger, errCh chan<- error) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	if ops != nil {
		mux.HandleFunc("/debug/health", func(w http.ResponseWriter, r *http.Request) {
			body, err := ops.StatusJSON(r.Context())
			if err != nil {
				http.Error(w, "health unavailable", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
		})
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", lis.Addr().String()))
	return srv
}

func openStore(ctx context.Context, cfg config.StorageConfig, log logging.Logger) (store.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendPostgres:
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				pg.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info(ctx, "scenario tables migrated")
		}
		return pg, nil
	case config.BackendMemory:
		var ds model.Dataset
		if cfg.DatasetFile != "" {
			loaded, err := store.LoadDatasetFile(cfg.DatasetFile)
			if err != nil {
				return nil, err
			}
			ds = loaded
		}
		log.Info(ctx, "using memory store",
			logging.String("dataset", cfg.DatasetFile),
			logging.Int("directions", len(ds.Directions)),
		)
		return store.NewMemory(ds), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
