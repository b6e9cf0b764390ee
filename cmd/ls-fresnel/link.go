package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/litescript/ls-fresnel/internal/elevation"
	"github.com/litescript/ls-fresnel/internal/geo"
	"github.com/litescript/ls-fresnel/internal/rf"
	"github.com/litescript/ls-fresnel/internal/tracing"
)

func newLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Report the Fresnel zone of a single link",
		Long: `Report distance, wavelength, first Fresnel zone radius and endpoint
elevations for a link between two coordinates, without starting the map.

Examples:
  ls-fresnel link --a 37,-122 --b 37.1,-122.1 --freq 5
  ls-fresnel link --a 37,-122 --b 37.1,-122.1 --freq 2.4 --json`,
		RunE: runLink,
	}

	cmd.Flags().String("a", "", "First endpoint as lat,lng (required)")
	cmd.Flags().String("b", "", "Second endpoint as lat,lng (required)")
	cmd.Flags().Float64("freq", 0, "Link frequency in GHz (required)")
	cmd.Flags().Bool("json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("a")
	_ = cmd.MarkFlagRequired("b")
	_ = cmd.MarkFlagRequired("freq")
	return cmd
}

func runLink(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}

	aFlag, _ := cmd.Flags().GetString("a")
	bFlag, _ := cmd.Flags().GetString("b")
	freq, _ := cmd.Flags().GetFloat64("freq")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := geo.ParseCoord(aFlag)
	if err != nil {
		return fmt.Errorf("--a: %w", err)
	}
	b, err := geo.ParseCoord(bFlag)
	if err != nil {
		return fmt.Errorf("--b: %w", err)
	}

	logger := newLogger(cfg.LogLevel, cmd.ErrOrStderr())

	shutdownTracing, err := tracing.Init(cmd.Context(), cfg.TracingConfig(cmd.ErrOrStderr()), logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.ShutdownWithTimeout(shutdownTracing, logger)

	client := elevation.NewClient(
		elevation.WithURL(cfg.ElevationURL),
		elevation.WithTimeout(cfg.Timeout),
		elevation.WithLogger(logger),
	)

	report, err := buildLinkReport(cmd.Context(), client, a, b, freq)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return report.WriteJSON(out)
	}
	report.WriteText(out, isTerminal(out))
	return nil
}

// linkEndpoint is one end of a reported link.
type linkEndpoint struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	ElevationM float64 `json:"elevation_m"`
}

// linkReport summarizes a link's geometry and first Fresnel zone.
type linkReport struct {
	A              linkEndpoint `json:"a"`
	B              linkEndpoint `json:"b"`
	FrequencyGHz   float64      `json:"frequency_ghz"`
	Band           string       `json:"band"`
	DistanceKm     float64      `json:"distance_km"`
	WavelengthM    float64      `json:"wavelength_m"`
	FresnelRadiusM float64      `json:"fresnel_radius_m"`
	ElevationKnown bool         `json:"elevation_known"`
}

func buildLinkReport(ctx context.Context, src elevation.Source, a, b geo.Coord, freqGHz float64) (linkReport, error) {
	if freqGHz <= 0 || math.IsNaN(freqGHz) || math.IsInf(freqGHz, 0) {
		return linkReport{}, fmt.Errorf("frequency must be a positive number of GHz, got %v", freqGHz)
	}

	km := geo.DistanceKm(a, b)
	pair := src.Lookup(ctx, a, b)

	return linkReport{
		A:              linkEndpoint{Lat: a.Lat, Lng: a.Lng, ElevationM: pair.A.ElevationM},
		B:              linkEndpoint{Lat: b.Lat, Lng: b.Lng, ElevationM: pair.B.ElevationM},
		FrequencyGHz:   freqGHz,
		Band:           rf.BandFor(freqGHz).String(),
		DistanceKm:     km,
		WavelengthM:    rf.WavelengthMeters(freqGHz),
		FresnelRadiusM: rf.FresnelRadiusAtMidpoint(freqGHz, km*1000),
		ElevationKnown: !pair.Fallback,
	}, nil
}

// WriteJSON writes the report as indented JSON.
func (r linkReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

var (
	reportTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("135"))
	reportLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	reportValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22D3EE"))
)

// WriteText writes a human-readable report, styled when styled is set.
func (r linkReport) WriteText(w io.Writer, styled bool) {
	title, label, value := fmt.Sprint, fmt.Sprint, fmt.Sprint
	if styled {
		title = func(a ...any) string { return reportTitleStyle.Render(fmt.Sprint(a...)) }
		label = func(a ...any) string { return reportLabelStyle.Render(fmt.Sprint(a...)) }
		value = func(a ...any) string { return reportValueStyle.Render(fmt.Sprint(a...)) }
	}

	elev := func(e linkEndpoint) string {
		if !r.ElevationKnown {
			return "unknown"
		}
		return strconv.FormatFloat(e.ElevationM, 'f', -1, 64) + " m"
	}

	fmt.Fprintln(w, title("Fresnel link report"))
	rows := []struct{ k, v string }{
		{"Endpoint A", fmt.Sprintf("%.6f,%.6f (%s)", r.A.Lat, r.A.Lng, elev(r.A))},
		{"Endpoint B", fmt.Sprintf("%.6f,%.6f (%s)", r.B.Lat, r.B.Lng, elev(r.B))},
		{"Frequency", fmt.Sprintf("%g GHz (%s)", r.FrequencyGHz, r.Band)},
		{"Distance", fmt.Sprintf("%.3f km", r.DistanceKm)},
		{"Wavelength", fmt.Sprintf("%.4f m", r.WavelengthM)},
		{"Fresnel radius", fmt.Sprintf("%.2f m at midpoint", r.FresnelRadiusM)},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s %s\n", label(fmt.Sprintf("%-15s", row.k+":")), value(row.v))
	}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
