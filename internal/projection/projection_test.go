package projection

import (
	"math"
	"testing"

	"github.com/litescript/ls-fresnel/internal/geo"
	"github.com/litescript/ls-fresnel/internal/rf"
)

// plateCarree is a linear lat/lng grid with a fixed number of degrees per pixel.
type plateCarree struct {
	degPerPx float64
}

func (p plateCarree) LatLngToPixel(c geo.Coord) geo.Point {
	return geo.Point{X: c.Lng / p.degPerPx, Y: -c.Lat / p.degPerPx}
}

func (p plateCarree) PixelToLatLng(pt geo.Point) geo.Coord {
	return geo.Coord{Lat: -pt.Y * p.degPerPx, Lng: pt.X * p.degPerPx}
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestMetersPerPixel_Equator(t *testing.T) {
	tr := plateCarree{degPerPx: 0.0001}
	got := MetersPerPixel(tr, geo.Coord{Lat: 0, Lng: 0.005})
	want := geo.EarthRadiusKm * 1000 * 0.0001 * math.Pi / 180
	if !approx(got, want, 1e-6) {
		t.Errorf("MetersPerPixel = %v, want %v", got, want)
	}
}

func TestComputeEllipse_EastWestLink(t *testing.T) {
	tr := plateCarree{degPerPx: 0.0001}
	a := geo.Coord{Lat: 0, Lng: 0}
	b := geo.Coord{Lat: 0, Lng: 0.01}

	mpp := geo.EarthRadiusKm * 1000 * 0.0001 * math.Pi / 180
	e := ComputeEllipse(tr, a, b, 10)

	if !approx(e.Center.X, 50, 1e-6) || !approx(e.Center.Y, 0, 1e-9) {
		t.Errorf("Center = %v, want (50, 0)", e.Center)
	}
	if !approx(e.SemiMajor, 50, 1e-3) {
		t.Errorf("SemiMajor = %v, want 50", e.SemiMajor)
	}
	if !approx(e.SemiMinor, 10/mpp, 1e-6) {
		t.Errorf("SemiMinor = %v, want %v", e.SemiMinor, 10/mpp)
	}
	if !approx(e.RotationDeg, 0, 1e-9) {
		t.Errorf("RotationDeg = %v, want 0", e.RotationDeg)
	}
}

func TestComputeEllipse_Rotation(t *testing.T) {
	tr := plateCarree{degPerPx: 0.0001}
	origin := geo.Coord{Lat: 0, Lng: 0}

	tests := []struct {
		name string
		b    geo.Coord
		want float64
	}{
		{"east", geo.Coord{Lat: 0, Lng: 0.01}, 0},
		{"north", geo.Coord{Lat: 0.01, Lng: 0}, -90},
		{"south", geo.Coord{Lat: -0.01, Lng: 0}, 90},
		{"west", geo.Coord{Lat: 0, Lng: -0.01}, 180},
		{"south-east", geo.Coord{Lat: -0.01, Lng: 0.01}, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ComputeEllipse(tr, origin, tt.b, 5)
			if !approx(e.RotationDeg, tt.want, 1e-9) {
				t.Errorf("RotationDeg = %v, want %v", e.RotationDeg, tt.want)
			}
		})
	}
}

func TestComputeEllipse_DegenerateLink(t *testing.T) {
	tr := plateCarree{degPerPx: 0.0001}
	c := geo.Coord{Lat: 10, Lng: 10}

	e := ComputeEllipse(tr, c, c, rf.FresnelRadiusAtMidpoint(5, 0))
	if e.SemiMajor != 0 || e.SemiMinor != 0 {
		t.Errorf("axes = %v, %v, want 0, 0", e.SemiMajor, e.SemiMinor)
	}
	if math.IsNaN(e.RotationDeg) {
		t.Error("RotationDeg is NaN")
	}
}

// collapsed maps everything to the origin.
type collapsed struct{}

func (collapsed) LatLngToPixel(geo.Coord) geo.Point { return geo.Point{} }
func (collapsed) PixelToLatLng(geo.Point) geo.Coord { return geo.Coord{} }

func TestComputeEllipse_CollapsedTransformIsFinite(t *testing.T) {
	e := ComputeEllipse(collapsed{}, geo.Coord{Lat: 1, Lng: 1}, geo.Coord{Lat: 2, Lng: 2}, 10)
	if math.IsInf(e.SemiMajor, 0) || math.IsNaN(e.SemiMajor) || math.IsInf(e.SemiMinor, 0) {
		t.Errorf("axes = %v, %v, want finite", e.SemiMajor, e.SemiMinor)
	}
}

func TestEllipse_Contains(t *testing.T) {
	e := Ellipse{Center: geo.Point{X: 10, Y: 10}, SemiMajor: 5, SemiMinor: 2, RotationDeg: 0}

	tests := []struct {
		p    geo.Point
		want bool
	}{
		{geo.Point{X: 10, Y: 10}, true},
		{geo.Point{X: 15, Y: 10}, true},
		{geo.Point{X: 15.1, Y: 10}, false},
		{geo.Point{X: 10, Y: 12}, true},
		{geo.Point{X: 10, Y: 12.5}, false},
	}
	for _, tt := range tests {
		if got := e.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	rotated := e
	rotated.RotationDeg = 90
	if !rotated.Contains(geo.Point{X: 10, Y: 14.5}) {
		t.Error("rotated ellipse should contain point along screen y")
	}
	if rotated.Contains(geo.Point{X: 14.5, Y: 10}) {
		t.Error("rotated ellipse should not contain point along screen x")
	}

	if (Ellipse{}).Contains(geo.Point{}) {
		t.Error("zero ellipse should contain nothing")
	}
}

func TestEllipse_Bounds(t *testing.T) {
	e := Ellipse{Center: geo.Point{X: 0, Y: 0}, SemiMajor: 5, SemiMinor: 2, RotationDeg: 90}
	minX, minY, maxX, maxY := e.Bounds()
	if !approx(minX, -2, 1e-9) || !approx(maxX, 2, 1e-9) || !approx(minY, -5, 1e-9) || !approx(maxY, 5, 1e-9) {
		t.Errorf("Bounds = (%v,%v)-(%v,%v), want (-2,-5)-(2,5)", minX, minY, maxX, maxY)
	}
}
