package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/litescript/ls-fresnel/internal/elevation"
	"github.com/litescript/ls-fresnel/internal/geo"
	"github.com/litescript/ls-fresnel/internal/logging"
	"github.com/litescript/ls-fresnel/internal/network"
	"github.com/litescript/ls-fresnel/internal/tracing"
	"github.com/litescript/ls-fresnel/internal/ui"
)

const (
	defaultCenter = "37.05,-122.05"
	minZoom       = 1
	maxZoom       = 19
)

// Config holds application configuration.
type Config struct {
	ElevationURL   string
	Timeout        time.Duration
	DefaultFreqGHz float64
	Center         geo.Coord
	Zoom           float64
	LogLevel       logging.Level
	LogFile        string
	MetricsAddr    string
	Trace          string
	OTLPEndpoint   string
}

// addConfigFlags registers the global flags on root.
func addConfigFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	f.String("elevation-url", elevation.DefaultBaseURL, "Base URL of the elevation lookup service")
	f.Duration("timeout", elevation.DefaultTimeout, "Elevation request timeout")
	f.Float64("default-freq", network.DefaultConfig().DefaultFrequencyGHz, "Frequency in GHz for new towers")
	f.String("center", defaultCenter, "Initial map center as lat,lng")
	f.Float64("zoom", ui.DefaultMapConfig().Zoom, "Initial map zoom level (1-19)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-file", "", "Write logs to this file (TUI logs are discarded otherwise)")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	f.String("trace", tracing.ExporterNone, "Trace elevation lookups: none, stdout or otlp")
	f.String("otlp-endpoint", tracing.DefaultConfig().Endpoint, "OTLP gRPC collector endpoint for --trace otlp")
}

// LoadConfig loads configuration from command flags and environment
// variables. Flags take precedence over the environment.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	timeout, err := getConfigDuration(cmd, "timeout", "LSF_TIMEOUT", elevation.DefaultTimeout)
	if err != nil {
		return Config{}, err
	}
	freq, err := getConfigFloat(cmd, "default-freq", "LSF_DEFAULT_FREQ", network.DefaultConfig().DefaultFrequencyGHz)
	if err != nil {
		return Config{}, err
	}
	zoom, err := getConfigFloat(cmd, "zoom", "LSF_ZOOM", ui.DefaultMapConfig().Zoom)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ElevationURL:   getConfigString(cmd, "elevation-url", "LSF_ELEVATION_URL", elevation.DefaultBaseURL),
		Timeout:        timeout,
		DefaultFreqGHz: freq,
		Zoom:           zoom,
		LogLevel:       logging.ParseLevel(getConfigString(cmd, "log-level", "LSF_LOG_LEVEL", "info")),
		LogFile:        getConfigString(cmd, "log-file", "LSF_LOG_FILE", ""),
		MetricsAddr:    getConfigString(cmd, "metrics-addr", "LSF_METRICS_ADDR", ""),
		Trace:          strings.ToLower(getConfigString(cmd, "trace", "LSF_TRACE", tracing.ExporterNone)),
		OTLPEndpoint:   getConfigString(cmd, "otlp-endpoint", "LSF_OTLP_ENDPOINT", tracing.DefaultConfig().Endpoint),
	}

	center, err := geo.ParseCoord(getConfigString(cmd, "center", "LSF_CENTER", defaultCenter))
	if err != nil {
		return Config{}, fmt.Errorf("center: %w", err)
	}
	cfg.Center = center

	if cfg.DefaultFreqGHz <= 0 || math.IsNaN(cfg.DefaultFreqGHz) || math.IsInf(cfg.DefaultFreqGHz, 0) {
		return Config{}, fmt.Errorf("default frequency must be a positive number of GHz, got %v", cfg.DefaultFreqGHz)
	}
	if cfg.Zoom < minZoom || cfg.Zoom > maxZoom {
		return Config{}, fmt.Errorf("zoom must be between %d and %d, got %v", minZoom, maxZoom, cfg.Zoom)
	}
	if cfg.Timeout <= 0 {
		return Config{}, fmt.Errorf("timeout must be positive, got %v", cfg.Timeout)
	}
	switch cfg.Trace {
	case tracing.ExporterNone, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return Config{}, fmt.Errorf("trace must be none, stdout or otlp, got %q", cfg.Trace)
	}
	return cfg, nil
}

// TracingConfig returns the tracing configuration for cfg. Stdout spans are
// written to w.
func (c Config) TracingConfig(w io.Writer) tracing.Config {
	tc := tracing.DefaultConfig()
	tc.Exporter = c.Trace
	tc.Endpoint = c.OTLPEndpoint
	tc.Writer = w
	return tc
}

// NetworkConfig returns the network configuration for cfg.
func (c Config) NetworkConfig() network.Config {
	nc := network.DefaultConfig()
	nc.DefaultFrequencyGHz = c.DefaultFreqGHz
	return nc
}

// MapConfig returns the map configuration for cfg.
func (c Config) MapConfig() ui.MapConfig {
	mc := ui.DefaultMapConfig()
	mc.Center = c.Center
	mc.Zoom = c.Zoom
	return mc
}

// getConfigString gets a string value from flag, then env, then default
func getConfigString(cmd *cobra.Command, flagName, envName, defaultValue string) string {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetString(flagName)
		return val
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return defaultValue
}

// getConfigFloat gets a float64 value from flag, then env, then default.
// An env value that does not parse is an error.
func getConfigFloat(cmd *cobra.Command, flagName, envName string, defaultValue float64) (float64, error) {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetFloat64(flagName)
		return val, nil
	}
	if v := os.Getenv(envName); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not a number", envName, v)
		}
		return f, nil
	}
	return defaultValue, nil
}

// getConfigDuration gets a duration from flag, then env, then default.
// Bare numbers in the environment are read as seconds.
func getConfigDuration(cmd *cobra.Command, flagName, envName string, defaultValue time.Duration) (time.Duration, error) {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetDuration(flagName)
		return val, nil
	}
	v := strings.TrimSpace(os.Getenv(envName))
	if v == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("%s: %q is not a duration", envName, v)
}
