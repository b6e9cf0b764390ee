// Package projection turns a geographic Fresnel zone into a screen-space
// ellipse and keeps it in step with a rendering surface's view transform.
package projection

import (
	"math"

	"github.com/litescript/ls-fresnel/internal/geo"
)

// Transform maps between geographic and screen pixel coordinates.
type Transform interface {
	LatLngToPixel(c geo.Coord) geo.Point
	PixelToLatLng(p geo.Point) geo.Coord
}

// Ellipse is a rotated ellipse in screen space.
type Ellipse struct {
	Center      geo.Point
	SemiMajor   float64 // pixels, half the path length
	SemiMinor   float64 // pixels, the Fresnel radius
	RotationDeg float64 // atan2 of the projected path, screen y down
}

// MetersPerPixel measures the local scale at c by stepping one pixel east
// and taking the great-circle distance back to c.
func MetersPerPixel(t Transform, c geo.Coord) float64 {
	p := t.LatLngToPixel(c)
	east := t.PixelToLatLng(geo.Point{X: p.X + 1, Y: p.Y})
	return geo.DistanceMeters(c, east)
}

// ComputeEllipse projects the Fresnel zone between a and b.
func ComputeEllipse(t Transform, a, b geo.Coord, radiusMeters float64) Ellipse {
	mid := geo.Midpoint(a, b)
	center := t.LatLngToPixel(mid)

	halfPathMeters := geo.DistanceMeters(a, b) / 2

	var semiMajor, semiMinor float64
	if mpp := MetersPerPixel(t, mid); mpp > 0 && !math.IsInf(mpp, 0) && !math.IsNaN(mpp) {
		semiMajor = halfPathMeters / mpp
		semiMinor = radiusMeters / mpp
	}

	pa := t.LatLngToPixel(a)
	pb := t.LatLngToPixel(b)
	angle := math.Atan2(pb.Y-pa.Y, pb.X-pa.X) * 180 / math.Pi

	return Ellipse{
		Center:      center,
		SemiMajor:   semiMajor,
		SemiMinor:   semiMinor,
		RotationDeg: angle,
	}
}

// Contains reports whether screen point p lies inside or on the ellipse.
func (e Ellipse) Contains(p geo.Point) bool {
	if e.SemiMajor <= 0 || e.SemiMinor <= 0 {
		return false
	}

	dx := p.X - e.Center.X
	dy := p.Y - e.Center.Y

	// Rotate the offset into the ellipse's own frame.
	theta := -e.RotationDeg * math.Pi / 180
	u := dx*math.Cos(theta) - dy*math.Sin(theta)
	v := dx*math.Sin(theta) + dy*math.Cos(theta)

	return (u*u)/(e.SemiMajor*e.SemiMajor)+(v*v)/(e.SemiMinor*e.SemiMinor) <= 1
}

// Bounds returns the axis-aligned bounding box of the ellipse.
func (e Ellipse) Bounds() (minX, minY, maxX, maxY float64) {
	theta := e.RotationDeg * math.Pi / 180
	c, s := math.Cos(theta), math.Sin(theta)
	hw := math.Hypot(e.SemiMajor*c, e.SemiMinor*s)
	hh := math.Hypot(e.SemiMajor*s, e.SemiMinor*c)
	return e.Center.X - hw, e.Center.Y - hh, e.Center.X + hw, e.Center.Y + hh
}
