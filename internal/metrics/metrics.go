// Package metrics bundles the Prometheus collectors for elevation lookups,
// Fresnel inspections, and network size.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeStatus    = "bad_status"
	OutcomeDecode    = "decode_error"
	OutcomeShort     = "incomplete"
)

// Inspection results.
const (
	InspectionApplied = "applied"
	InspectionStale   = "stale"
)

// Collector holds registered collectors. A nil *Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	ElevationLookups  *prometheus.CounterVec
	ElevationDuration prometheus.Histogram
	Inspections       *prometheus.CounterVec
	Towers            prometheus.Gauge
	Links             prometheus.Gauge
}

// New registers collectors against reg, defaulting to the global registry
// when nil. Registering twice against the same registry reuses the existing
// collectors.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	lookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lsf_elevation_lookups_total",
		Help: "Elevation lookups, labeled by outcome. Anything but ok was served from fallback.",
	}, []string{"outcome"}), "lsf_elevation_lookups_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lsf_elevation_lookup_duration_seconds",
		Help:    "Elevation lookup latency in seconds, including failed attempts.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "lsf_elevation_lookup_duration_seconds")
	if err != nil {
		return nil, err
	}

	inspections, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lsf_inspections_total",
		Help: "Completed Fresnel inspections, labeled by whether they were applied or dropped as stale.",
	}, []string{"result"}), "lsf_inspections_total")
	if err != nil {
		return nil, err
	}

	towers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lsf_towers",
		Help: "Current number of towers.",
	}), "lsf_towers")
	if err != nil {
		return nil, err
	}

	links, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lsf_links",
		Help: "Current number of links.",
	}), "lsf_links")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		ElevationLookups:  lookups,
		ElevationDuration: duration,
		Inspections:       inspections,
		Towers:            towers,
		Links:             links,
	}, nil
}

// ObserveLookup records one elevation lookup.
func (c *Collector) ObserveLookup(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.ElevationLookups.WithLabelValues(outcome).Inc()
	c.ElevationDuration.Observe(d.Seconds())
}

// ObserveInspection records a completed inspection.
func (c *Collector) ObserveInspection(result string) {
	if c == nil {
		return
	}
	c.Inspections.WithLabelValues(result).Inc()
}

// SetNetworkCounts updates the tower and link gauges.
func (c *Collector) SetNetworkCounts(towers, links int) {
	if c == nil {
		return
	}
	c.Towers.Set(float64(towers))
	c.Links.Set(float64(links))
}

// Handler exposes a /metrics handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
