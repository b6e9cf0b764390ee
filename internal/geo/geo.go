// Package geo provides great-circle distance and map projection math.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// Coord is a geographic position in degrees.
type Coord struct {
	Lat float64 // Latitude in degrees (north positive)
	Lng float64 // Longitude in degrees (east positive)
}

// String formats the coordinate as "lat,lng" with 6 decimals.
func (c Coord) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Point is a position in screen (pixel) space. Y grows downward.
type Point struct {
	X float64
	Y float64
}

// DistanceKm returns the haversine great-circle distance between a and b in kilometers.
func DistanceKm(a, b Coord) float64 {
	return a.latLng().Distance(b.latLng()).Radians() * EarthRadiusKm
}

// DistanceMeters is DistanceKm expressed in meters.
func DistanceMeters(a, b Coord) float64 {
	return DistanceKm(a, b) * 1000
}

// Midpoint returns the arithmetic mean of two coordinates.
// Good enough for links of tens of kilometers; not a great-circle midpoint.
func Midpoint(a, b Coord) Coord {
	return Coord{
		Lat: (a.Lat + b.Lat) / 2,
		Lng: (a.Lng + b.Lng) / 2,
	}
}

func (c Coord) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Lat, c.Lng)
}

// Valid reports whether the coordinate is within lat/lng bounds.
func (c Coord) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// ParseCoord parses "lat,lng" into a Coord.
func ParseCoord(s string) (Coord, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Coord{}, fmt.Errorf("coordinate %q: want lat,lng", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coord{}, fmt.Errorf("parse latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coord{}, fmt.Errorf("parse longitude: %w", err)
	}

	c := Coord{Lat: lat, Lng: lng}
	if !c.Valid() {
		return Coord{}, fmt.Errorf("coordinate %q out of range", s)
	}
	return c, nil
}

// degToRad converts degrees to radians.
func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// radToDeg converts radians to degrees.
func radToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
