package controller

import (
	"context"

	"github.com/litescript/ls-fresnel/internal/elevation"
	"github.com/litescript/ls-fresnel/internal/metrics"
	"github.com/litescript/ls-fresnel/internal/network"
	"github.com/litescript/ls-fresnel/internal/projection"
	"github.com/litescript/ls-fresnel/internal/rf"
)

// Inspection is a detached Fresnel-zone job for one link. Run touches no
// controller state, so it may execute on any goroutine.
type Inspection struct {
	generation uint64
	source     elevation.Source

	LinkID       string
	A            network.Tower
	B            network.Tower
	FrequencyGHz float64
	DistanceKm   float64
}

// InspectionResult is the output of Inspection.Run.
type InspectionResult struct {
	generation uint64

	LinkID       string
	FrequencyGHz float64
	DistanceKm   float64
	RadiusMeters float64
	Elevations   elevation.Pair
}

// Run samples both endpoint elevations and computes the midpoint Fresnel
// radius. It always returns a usable result.
func (i *Inspection) Run(ctx context.Context) InspectionResult {
	pair := i.source.Lookup(ctx, i.A.Position, i.B.Position)
	return InspectionResult{
		generation:   i.generation,
		LinkID:       i.LinkID,
		FrequencyGHz: i.FrequencyGHz,
		DistanceKm:   i.DistanceKm,
		RadiusMeters: rf.FresnelRadiusAtMidpoint(i.FrequencyGHz, i.DistanceKm*1000),
		Elevations:   pair,
	}
}

// inspect releases any previous zone and returns a job for link id.
func (c *Controller) inspect(id string) Outcome {
	link, ok := c.net.Link(id)
	if !ok {
		return Outcome{}
	}
	a, b, ok := c.net.Endpoints(id)
	if !ok {
		return Outcome{}
	}

	c.invalidate()
	c.pending = id
	c.logger.Debug("inspecting link", "id", id, "generation", c.generation)

	return Outcome{Inspection: &Inspection{
		generation:   c.generation,
		source:       c.source,
		LinkID:       id,
		A:            a,
		B:            b,
		FrequencyGHz: link.FrequencyGHz,
		DistanceKm:   link.DistanceKm,
	}}
}

// Complete applies a finished inspection. Results from a superseded
// inspection, or for a link that no longer exists, are dropped.
func (c *Controller) Complete(res InspectionResult) Outcome {
	if res.generation != c.generation || res.LinkID != c.pending {
		c.metrics.ObserveInspection(metrics.InspectionStale)
		c.logger.Debug("dropping stale inspection", "link", res.LinkID,
			"generation", res.generation, "current", c.generation)
		return Outcome{}
	}

	a, b, ok := c.net.Endpoints(res.LinkID)
	if !ok {
		c.pending = ""
		c.metrics.ObserveInspection(metrics.InspectionStale)
		return Outcome{}
	}

	c.pending = ""
	c.zone = &Zone{
		LinkID:       res.LinkID,
		FrequencyGHz: res.FrequencyGHz,
		DistanceKm:   res.DistanceKm,
		RadiusMeters: res.RadiusMeters,
		Elevations:   res.Elevations,
		Overlay:      projection.Attach(c.surface, a.Position, b.Position, res.RadiusMeters),
	}
	c.metrics.ObserveInspection(metrics.InspectionApplied)
	c.logger.Info("fresnel zone displayed", "link", res.LinkID,
		"radius_m", res.RadiusMeters, "fallback", res.Elevations.Fallback)

	return Outcome{Notice: success("Fresnel zone displayed. Elevation: %sm - %sm",
		formatMeters(res.Elevations.A.ElevationM), formatMeters(res.Elevations.B.ElevationM))}
}
