// Package elevation samples terrain elevation from an Open-Elevation compatible
// lookup service.
package elevation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/litescript/ls-fresnel/internal/geo"
	"github.com/litescript/ls-fresnel/internal/logging"
	"github.com/litescript/ls-fresnel/internal/metrics"
)

const (
	// DefaultBaseURL is the public Open-Elevation API.
	DefaultBaseURL = "https://api.open-elevation.com"

	// LookupPath is appended to the base URL.
	LookupPath = "/api/v1/lookup"

	// DefaultTimeout for HTTP requests.
	DefaultTimeout = 10 * time.Second

	// maxBodyBytes bounds how much of a response we are willing to read.
	maxBodyBytes = 1 << 20

	tracerName = "github.com/litescript/ls-fresnel/internal/elevation"
)

// Sample is one elevation reading.
type Sample struct {
	Lat        float64
	Lng        float64
	ElevationM float64
}

// Pair holds the two samples for a link, in request order.
// Fallback is true when the service could not be used and both
// elevations are 0 meaning "unknown".
type Pair struct {
	A        Sample
	B        Sample
	Fallback bool
	Reason   string
}

// Source is anything that can produce an elevation pair.
type Source interface {
	Lookup(ctx context.Context, a, b geo.Coord) Pair
}

// Client queries the lookup endpoint.
type Client struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithURL sets the service base URL (scheme and host, no path).
func WithURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records lookups on the collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracerProvider traces lookups on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// NewClient creates a lookup client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		c.client = &http.Client{
			Timeout: c.timeout,
		}
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	return c
}

// lookupResponse is the service's JSON body.
type lookupResponse struct {
	Results []struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}

// lookupError tags a failure with a metrics outcome.
type lookupError struct {
	outcome string
	err     error
}

func (e *lookupError) Error() string { return e.err.Error() }
func (e *lookupError) Unwrap() error { return e.err }

// Lookup returns elevation samples for a and b. It never fails: on any
// problem it returns elevation 0 at the requested coordinates with
// Fallback set.
func (c *Client) Lookup(ctx context.Context, a, b geo.Coord) Pair {
	ctx, span := c.tracer.Start(ctx, "elevation.Lookup", trace.WithAttributes(
		attribute.String("elevation.a", a.String()),
		attribute.String("elevation.b", b.String()),
	))
	defer span.End()

	start := time.Now()
	pair, err := c.lookup(ctx, a, b)
	elapsed := time.Since(start)

	if err != nil {
		outcome := metrics.OutcomeTransport
		var le *lookupError
		if errors.As(err, &le) {
			outcome = le.outcome
		}
		c.metrics.ObserveLookup(outcome, elapsed)
		c.logger.Warn("elevation lookup failed, using fallback",
			"a", a.String(), "b", b.String(), "outcome", outcome, "err", err)

		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		span.SetAttributes(attribute.Bool("elevation.fallback", true))
		return Fallback(a, b, err.Error())
	}

	c.metrics.ObserveLookup(metrics.OutcomeOK, elapsed)
	c.logger.Debug("elevation lookup complete",
		"a_m", pair.A.ElevationM, "b_m", pair.B.ElevationM, "duration", elapsed)
	span.SetAttributes(attribute.Bool("elevation.fallback", false))
	return pair
}

func (c *Client) lookup(ctx context.Context, a, b geo.Coord) (Pair, error) {
	body, err := c.fetchRaw(ctx, a, b)
	if err != nil {
		return Pair{}, err
	}

	var resp lookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Pair{}, &lookupError{outcome: metrics.OutcomeDecode, err: fmt.Errorf("decode lookup response: %w", err)}
	}
	if len(resp.Results) < 2 {
		return Pair{}, &lookupError{outcome: metrics.OutcomeShort, err: fmt.Errorf("lookup returned %d results, want 2", len(resp.Results))}
	}

	samples := [2]Sample{}
	for i := range samples {
		r := resp.Results[i]
		samples[i] = Sample{Lat: r.Latitude, Lng: r.Longitude}
		if r.Elevation != nil {
			samples[i].ElevationM = *r.Elevation
		}
	}

	return Pair{A: samples[0], B: samples[1]}, nil
}

func (c *Client) fetchRaw(ctx context.Context, a, b geo.Coord) ([]byte, error) {
	u, err := c.LookupURL(a, b)
	if err != nil {
		return nil, &lookupError{outcome: metrics.OutcomeTransport, err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &lookupError{outcome: metrics.OutcomeTransport, err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", "ls-fresnel/1.0 (Fresnel Link Planner)")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &lookupError{outcome: metrics.OutcomeTransport, err: fmt.Errorf("fetch elevation: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &lookupError{outcome: metrics.OutcomeStatus, err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &lookupError{outcome: metrics.OutcomeTransport, err: fmt.Errorf("read response body: %w", err)}
	}

	return body, nil
}

// LookupURL builds the request URL for two coordinates.
func (c *Client) LookupURL(a, b geo.Coord) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + LookupPath

	q := url.Values{}
	q.Set("locations", formatLocation(a)+"|"+formatLocation(b))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// BaseURL returns the configured service URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func formatLocation(c geo.Coord) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// Fallback returns the deterministic pair used when the service is unavailable.
func Fallback(a, b geo.Coord, reason string) Pair {
	return Pair{
		A:        Sample{Lat: a.Lat, Lng: a.Lng},
		B:        Sample{Lat: b.Lat, Lng: b.Lng},
		Fallback: true,
		Reason:   reason,
	}
}
