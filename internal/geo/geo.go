// Package geo provides the spherical geometry primitives shared by the
// lifecycle engine: coordinate validation, haversine distance, and the
// privacy fuzzer that displaces coordinates before anything is persisted.
package geo

import (
	"errors"
	"math"
	"math/rand/v2"
)

// EarthRadiusMeters is the mean Earth radius used for all spherical math.
const EarthRadiusMeters = 6371000.0

// ErrInvalidConfig signals a fuzz radius range with min > max. This is a
// configuration error and must fail loudly, never be tolerated.
var ErrInvalidConfig = errors.New("geo: fuzz radius range is empty (min > max)")

// ErrInvalidCoordinate signals a latitude/longitude outside the valid range.
var ErrInvalidCoordinate = errors.New("geo: coordinate out of range")

// ValidCoordinate reports whether lat/lng form a finite, in-range coordinate.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Distance returns the haversine great-circle distance in meters between two
// coordinates.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// FuzzResult is the displaced coordinate plus the displacement actually
// applied, rounded to whole meters.
type FuzzResult struct {
	Lat        float64
	Lng        float64
	RadiusUsed float64
}

// Fuzzer applies randomized, bounded displacement to coordinates. It holds no
// state beyond its randomness source and retains nothing about its inputs:
// the caller must discard the true coordinate as soon as Fuzz returns.
type Fuzzer struct {
	// uniform returns a draw from [0,1).
	uniform func() float64
}

// NewFuzzer returns a fuzzer backed by the default randomness source.
func NewFuzzer() *Fuzzer {
	return &Fuzzer{uniform: rand.Float64}
}

// NewFuzzerWithSource returns a fuzzer drawing from the given uniform [0,1)
// source. Tests use this to make draws deterministic.
func NewFuzzerWithSource(uniform func() float64) *Fuzzer {
	return &Fuzzer{uniform: uniform}
}

// Fuzz displaces (lat, lng) by a distance drawn uniformly from
// [minRadiusM, maxRadiusM] in a bearing drawn uniformly from [0°, 360°).
// A max radius of 0 returns the input unchanged with RadiusUsed 0
// (exact-location categories). min > max is a contract violation.
func (f *Fuzzer) Fuzz(lat, lng, minRadiusM, maxRadiusM float64) (FuzzResult, error) {
	if !ValidCoordinate(lat, lng) {
		return FuzzResult{}, ErrInvalidCoordinate
	}
	if maxRadiusM == 0 {
		if minRadiusM > 0 {
			return FuzzResult{}, ErrInvalidConfig
		}
		return FuzzResult{Lat: lat, Lng: lng, RadiusUsed: 0}, nil
	}
	if minRadiusM > maxRadiusM {
		return FuzzResult{}, ErrInvalidConfig
	}

	radius := minRadiusM + f.uniform()*(maxRadiusM-minRadiusM)
	bearing := f.uniform() * 360

	newLat, newLng := destination(lat, lng, bearing, radius)
	return FuzzResult{
		Lat:        newLat,
		Lng:        newLng,
		RadiusUsed: math.Round(radius),
	}, nil
}

// destination computes the point reached from (lat, lng) by traveling
// distanceM meters along the given bearing on a spherical Earth.
func destination(lat, lng, bearingDeg, distanceM float64) (float64, float64) {
	lat1 := radians(lat)
	lng1 := radians(lng)
	bearing := radians(bearingDeg)
	angular := distanceM / EarthRadiusMeters

	lat2 := math.Asin(
		math.Sin(lat1)*math.Cos(angular) +
			math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing),
	)

	lng2 := lng1 + math.Atan2(
		math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2),
	)

	return degrees(lat2), degrees(lng2)
}

func radians(deg float64) float64 { return deg * (math.Pi / 180) }

func degrees(rad float64) float64 { return rad * (180 / math.Pi) }
