// Command ls-fresnel is a terminal map for planning radio tower links and
// inspecting their first Fresnel zone.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/litescript/ls-fresnel/internal/controller"
	"github.com/litescript/ls-fresnel/internal/elevation"
	"github.com/litescript/ls-fresnel/internal/geo"
	"github.com/litescript/ls-fresnel/internal/logging"
	"github.com/litescript/ls-fresnel/internal/metrics"
	"github.com/litescript/ls-fresnel/internal/network"
	"github.com/litescript/ls-fresnel/internal/projection"
	"github.com/litescript/ls-fresnel/internal/tracing"
	"github.com/litescript/ls-fresnel/internal/ui"
	"github.com/litescript/ls-fresnel/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ls-fresnel",
		Short: "Plan radio tower links and inspect Fresnel zones",
		Long: `ls-fresnel places radio towers on a terminal map, links towers that
share a frequency, and draws the first Fresnel zone of a selected link
using terrain elevations from an Open-Elevation compatible service.

Configuration can be set via environment variables or command-line flags.`,
		SilenceUsage: true,
		RunE:         runTUI,
	}
	addConfigFlags(root)

	root.AddCommand(newLinkCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ls-fresnel %s\n", version.Version)
		},
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}

	// The alternate screen owns the terminal, so logs and stdout spans only
	// go to a file.
	logger := logging.Discard()
	var logOut io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logger = newLogger(cfg.LogLevel, f)
		logOut = f
	} else if cfg.Trace == tracing.ExporterStdout {
		return errors.New("--trace stdout needs --log-file while the map is open")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	shutdownTracing, err := tracing.Init(ctx, cfg.TracingConfig(logOut), logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.ShutdownWithTimeout(shutdownTracing, logger)

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, collector, logger)
		defer stop()
	}

	net := network.New(cfg.NetworkConfig())
	net.SetRecorder(collector)

	vp := projection.NewViewport(geo.NewMercator(cfg.Zoom))
	client := elevation.NewClient(
		elevation.WithURL(cfg.ElevationURL),
		elevation.WithTimeout(cfg.Timeout),
		elevation.WithLogger(logger),
		elevation.WithMetrics(collector),
	)
	ctl := controller.New(net, vp, client,
		controller.WithLogger(logger),
		controller.WithMetrics(collector),
	)
	defer ctl.Shutdown()

	logger.Info("starting", "version", version.Version, "elevation_url", cfg.ElevationURL,
		"default_freq_ghz", cfg.DefaultFreqGHz)

	model := ui.New(ctx, ctl, vp, cfg.MapConfig(), logger)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}

func newLogger(level logging.Level, w io.Writer) *logging.Logger {
	l := logging.New(level)
	l.SetOutput(w)
	return l
}

// serveMetrics exposes /metrics on addr and returns a function that shuts
// the server down.
func serveMetrics(addr string, collector *metrics.Collector, logger *logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", "err", err)
		}
	}
}
