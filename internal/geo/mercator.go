package geo

import "math"

const (
	maxMercatorLat = 85.05112878
	minMercatorLat = -85.05112878

	// DefaultTileSize is the pixel width of one Web Mercator tile.
	DefaultTileSize = 256.0
)

// Mercator is a spherical Web Mercator transform with a pixel origin.
// World pixel coordinates at zoom z span [0, TileSize*2^z).
// Origin is the world pixel that maps to screen (0,0).
type Mercator struct {
	Zoom     float64
	TileSize float64
	Origin   Point
}

// NewMercator creates a transform at the given zoom with the screen origin at 0,0.
func NewMercator(zoom float64) Mercator {
	return Mercator{Zoom: zoom, TileSize: DefaultTileSize}
}

func (m Mercator) worldSize() float64 {
	ts := m.TileSize
	if ts <= 0 {
		ts = DefaultTileSize
	}
	return ts * math.Exp2(m.Zoom)
}

// World projects a coordinate to world pixels (ignores Origin).
func (m Mercator) World(c Coord) Point {
	lat := c.Lat
	if lat > maxMercatorLat {
		lat = maxMercatorLat
	}
	if lat < minMercatorLat {
		lat = minMercatorLat
	}

	size := m.worldSize()
	r := degToRad(lat)
	x := (c.Lng + 180.0) / 360.0 * size
	y := (1.0 - math.Log(math.Tan(r)+1/math.Cos(r))/math.Pi) / 2.0 * size
	return Point{X: x, Y: y}
}

// Project converts a coordinate to screen pixels.
func (m Mercator) Project(c Coord) Point {
	w := m.World(c)
	return Point{X: w.X - m.Origin.X, Y: w.Y - m.Origin.Y}
}

// Unproject converts screen pixels back to a coordinate.
func (m Mercator) Unproject(p Point) Coord {
	size := m.worldSize()
	wx := p.X + m.Origin.X
	wy := p.Y + m.Origin.Y

	lng := wx/size*360.0 - 180.0
	n := math.Pi - 2.0*math.Pi*wy/size
	lat := radToDeg(math.Atan(math.Sinh(n)))
	return Coord{Lat: lat, Lng: lng}
}

// CenteredOn returns a copy whose origin places c at screen point (cx, cy).
func (m Mercator) CenteredOn(c Coord, cx, cy float64) Mercator {
	w := m.World(c)
	m.Origin = Point{X: w.X - cx, Y: w.Y - cy}
	return m
}
