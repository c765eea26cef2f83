package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peter-kozarec/dbnfeed/internal/config"
	"github.com/peter-kozarec/dbnfeed/pkg/data/duckdb"
	"github.com/peter-kozarec/dbnfeed/pkg/dbn"
	"github.com/peter-kozarec/dbnfeed/pkg/live"
	"github.com/peter-kozarec/dbnfeed/pkg/middleware"
)

const shutdownTimeout = 5 * time.Second

func newLiveCommand(logs *logFlags) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Stream records from a live gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
				cfg.Logging.Level = logs.level
			}
			if logs.dev {
				cfg.Logging.DevMode = true
			}

			logger, err := cfg.Logger()
			if err != nil {
				return err
			}
			defer func(logger *zap.Logger) {
				_ = logger.Sync()
			}(logger)

			return runLive(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml)")
	return cmd
}

func runLive(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	session, err := live.NewSession(cfg.SessionConfig(cfg.Dialer(logger)),
		live.WithLogger(logger),
		live.WithRegisterer(reg))
	if err != nil {
		return err
	}
	defer session.Close()

	if err := cfg.Subscribe(session); err != nil {
		return err
	}

	telemetry := middleware.NewTelemetry(logger, reg)
	performance := middleware.NewPerformance(logger, reg)
	monitor := middleware.NewMonitor(logger, cfg.MonitorFlags())

	recordWrappers := []func(middleware.RecordHandler) middleware.RecordHandler{
		telemetry.WithRecord, performance.WithRecord, monitor.WithRecord,
	}
	metadataWrappers := []func(func(dbn.Metadata) error) func(dbn.Metadata) error{
		performance.WithMetadata, monitor.WithMetadata,
	}

	if cfg.DuckDB != "" {
		store, err := duckdb.Open(ctx, cfg.DuckDB)
		if err != nil {
			return err
		}
		defer store.Close()

		ledger := middleware.NewLedger(ctx, logger, store)
		recordWrappers = append(recordWrappers, ledger.WithRecord)
		metadataWrappers = append(metadataWrappers, ledger.WithMetadata)
	}

	handlers := live.Handlers{
		OnMetadata: middleware.Chain(metadataWrappers...)(middleware.NoopMetadataHdl),
		OnRecord:   middleware.Chain(recordWrappers...)(middleware.NoopRecordHdl),
		OnFault:    monitor.WithFault(onFault),
	}

	if err := session.Start(handlers); err != nil {
		return err
	}
	logSessionStarted(logger, session, cfg.Dataset)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return session.BlockForStop()
	})

	g.Go(func() error {
		<-gctx.Done()
		return session.Close()
	})

	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("metrics server listening", zap.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	telemetry.PrintStatistics()
	performance.PrintStatistics(telemetry)
	logger.Info("session stopped", zap.Stringer("state", session.State()))
	return err
}

// onFault gives up on rejected credentials and asks for a reconnect on
// everything else.
func onFault(err error) live.FaultAction {
	if errors.Is(err, live.ErrAuthentication) {
		return live.FaultStop
	}
	return live.FaultRestart
}

// logSessionStarted logs the client session id. The gateway session id is
// only known once the session goroutine has authenticated.
func logSessionStarted(logger *zap.Logger, session *live.Session, dataset string) {
	logger.Info("session started",
		zap.String("session", session.ID().String()),
		zap.String("dataset", dataset))
}
