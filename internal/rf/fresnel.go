// Package rf provides radio-frequency path math: wavelength and Fresnel zones.
package rf

import "math"

// SpeedOfLight in meters per second, rounded as is customary for link planning.
const SpeedOfLight = 3e8

// WavelengthMeters returns the free-space wavelength for a frequency in GHz.
// freqGHz <= 0 is a caller validation concern.
func WavelengthMeters(freqGHz float64) float64 {
	return SpeedOfLight / (freqGHz * 1e9)
}

// FresnelRadiusMeters returns the first Fresnel zone radius at a point that is
// d1 meters from one end of the path and d2 meters from the other.
// A zero-length path yields 0.
func FresnelRadiusMeters(freqGHz, d1, d2 float64) float64 {
	if d1+d2 <= 0 {
		return 0
	}
	lambda := WavelengthMeters(freqGHz)
	return math.Sqrt(lambda * d1 * d2 / (d1 + d2))
}

// FresnelRadiusAtMidpoint returns the first Fresnel zone radius at the middle
// of a path, which is the largest radius along it.
func FresnelRadiusAtMidpoint(freqGHz, totalMeters float64) float64 {
	half := totalMeters / 2
	return FresnelRadiusMeters(freqGHz, half, half)
}
