package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/dnsswitch/internal/alert"
	"github.com/hazz-dev/dnsswitch/internal/config"
	"github.com/hazz-dev/dnsswitch/internal/dashboard"
	"github.com/hazz-dev/dnsswitch/internal/events"
	"github.com/hazz-dev/dnsswitch/internal/gateway"
	"github.com/hazz-dev/dnsswitch/internal/metrics"
	"github.com/hazz-dev/dnsswitch/internal/monitor"
	"github.com/hazz-dev/dnsswitch/internal/prober"
	"github.com/hazz-dev/dnsswitch/internal/registry"
	"github.com/hazz-dev/dnsswitch/internal/scheduler"
	"github.com/hazz-dev/dnsswitch/internal/selector"
	"github.com/hazz-dev/dnsswitch/internal/server"
	"github.com/hazz-dev/dnsswitch/internal/storage"
	"github.com/hazz-dev/dnsswitch/internal/version"
)

// journalKeep bounds the journal table; older entries are pruned at startup.
const journalKeep = 10000

var (
	cfgFile  string
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dnsswitch",
		Short:        "Keeps an interface on the fastest reachable DNS resolvers",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(cmd.ErrOrStderr(), logLevel)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yml", "config file path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(versionCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(statusCmd())

	return root
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

func setupLogger(w io.Writer, level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Monitor candidates, switch resolvers and serve the dashboard",
		RunE:  runServe,
	}
}

// engine is the probing and switching core built from a config.
type engine struct {
	registry *registry.Registry
	sched    *scheduler.Scheduler
	gateway  gateway.Gateway
	th       selector.Thresholds
}

func buildEngine(cfg *config.Config, logger *slog.Logger) (*engine, error) {
	th := selector.Thresholds{OK: cfg.Thresholds.OK.Duration, Bad: cfg.Thresholds.Bad.Duration}
	if err := th.Validate(); err != nil {
		return nil, err
	}

	p, err := prober.New(cfg.Probe.Type, prober.Options{Query: cfg.Probe.Query})
	if err != nil {
		return nil, fmt.Errorf("creating prober: %w", err)
	}

	gw, err := gateway.New(cfg.Gateway.Type, cfg.Interface, cfg.Gateway.Timeout.Duration, nil)
	if err != nil {
		return nil, fmt.Errorf("creating gateway: %w", err)
	}

	return &engine{
		registry: registry.New(cfg.Candidates),
		sched:    scheduler.New(p, cfg.Probe.Concurrency, cfg.Probe.Timeout.Duration, logger),
		gateway:  gw,
		th:       th,
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	// 1. Load config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Info("config loaded",
		"interface", cfg.Interface,
		"candidates", len(cfg.Candidates),
		"probe", cfg.Probe.Type,
		"gateway", cfg.Gateway.Type,
	)

	// 2. Open SQLite journal
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if n, err := db.Prune(cmd.Context(), journalKeep); err != nil {
		logger.Warn("pruning journal", "error", err)
	} else if n > 0 {
		logger.Info("journal pruned", "removed", n)
	}

	// 3. Build the engine
	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	state := monitor.NewState()
	mon := monitor.New(state, eng.registry, eng.sched, eng.gateway, bus, monitor.Options{
		Interval:   cfg.Interval.Duration,
		Thresholds: eng.th,
	}, logger)
	drift := monitor.NewDriftDetector(state, eng.gateway, bus, cfg.DriftInterval.Duration, logger)

	m := metrics.New()
	mon.SetRoundObserver(m)
	drift.SetDriftObserver(m)

	// 4. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 5. Reporting sinks outlive ctx so the final stop events still land
	sinks := []func(events.Event){
		logSink(logger),
		journalSink(db, logger),
		m.Observe,
	}
	if cfg.Alerts.Webhook.URL != "" {
		sinks = append(sinks, alert.New(cfg.Alerts.Webhook.URL, cfg.Interface, cfg.Alerts.Webhook.Cooldown.Duration, logger).Notify)
	}
	closeSinks := startSinks(bus, sinks)

	// 6. API server, metrics and dashboard on one mux
	apiServer := server.New(server.Options{
		Interface:  cfg.Interface,
		Controller: mon,
		State:      state,
		Journal:    db,
		Events:     bus,
		RunContext: ctx,
	}, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Router())
	mux.Handle("/metrics", m.Handler(logger))
	mux.Handle("/", dashboard.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 7. Drift detector runs regardless of the loop's state
	driftDone := make(chan struct{})
	go func() {
		defer close(driftDone)
		drift.Run(ctx)
	}()

	if cfg.Autostart {
		mon.Start(ctx)
	}

	// 8. Start HTTP server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// 9. Wait for signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		mon.Stop()
		mon.Wait()
		stop()
		<-driftDone
		closeSinks()
		return fmt.Errorf("HTTP server: %w", err)
	}

	// 10. Graceful shutdown
	mon.Stop()
	mon.Wait()
	<-driftDone
	closeSinks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete", "dropped_events", bus.Dropped())
	return nil
}

// logSink mirrors log lines and status changes into the process log.
func logSink(logger *slog.Logger) func(events.Event) {
	return func(e events.Event) {
		switch e.Kind {
		case events.LogLine:
			logger.Info(e.Text)
		case events.StatusChanged:
			logger.Info("status", "text", e.Text, "primary", e.Primary, "secondary", e.Secondary)
		}
	}
}

// journalSink writes log lines and status changes to the journal.
func journalSink(db *storage.DB, logger *slog.Logger) func(events.Event) {
	return func(e events.Event) {
		if e.Kind == events.ResultUpdated {
			return
		}
		if err := db.InsertEvent(context.Background(), e); err != nil {
			logger.Error("journal insert", "kind", e.Kind, "error", err)
		}
	}
}

// startSinks subscribes every sink to bus. The returned func unsubscribes
// them and blocks until each has handled the events already buffered.
func startSinks(bus *events.Bus, sinks []func(events.Event)) func() {
	var wg sync.WaitGroup
	cancels := make([]func(), 0, len(sinks))
	for _, fn := range sinks {
		fn := fn
		ch, cancel := bus.Subscribe(256)
		cancels = append(cancels, cancel)
		wg.Add(1)
		go func() {
			defer wg.Done()
			events.Consume(context.Background(), ch, fn)
		}()
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
		wg.Wait()
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe all candidates once and show the decision that would be taken",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	eng, err := buildEngine(cfg, slog.Default())
	if err != nil {
		return err
	}
	return executeCheck(cmd.Context(), cmd.OutOrStdout(), eng)
}

func statusCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the last known resolver pair and recent journal entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			db, err := storage.Open(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			return executeStatus(cmd, db, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of journal entries to show")
	return cmd
}
