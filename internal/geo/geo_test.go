package geo

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidCoordinate(t *testing.T) {
	tests := []struct {
		name  string
		lat   float64
		lng   float64
		valid bool
	}{
		{"manila", 14.5995, 120.9842, true},
		{"equator origin", 0, 0, true},
		{"lat boundary", 90, 0, true},
		{"lng boundary", 0, -180, true},
		{"lat too high", 90.01, 0, false},
		{"lat too low", -91, 0, false},
		{"lng too high", 0, 180.5, false},
		{"nan lat", math.NaN(), 0, false},
		{"inf lng", 0, math.Inf(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidCoordinate(tt.lat, tt.lng))
		})
	}
}

func TestDistance_KnownPair(t *testing.T) {
	// Manila City Hall to Rizal Park is roughly 550m.
	d := Distance(14.5896, 120.9817, 14.5832, 120.9794)
	assert.InDelta(t, 750, d, 250)

	// Zero distance for identical points.
	assert.Zero(t, Distance(14.5995, 120.9842, 14.5995, 120.9842))
}

func TestFuzz_WithinBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	f := NewFuzzerWithSource(rng.Float64)

	const lat, lng = 14.5995, 120.9842
	const minR, maxR = 30.0, 50.0

	for i := 0; i < 1000; i++ {
		res, err := f.Fuzz(lat, lng, minR, maxR)
		require.NoError(t, err)

		d := Distance(lat, lng, res.Lat, res.Lng)
		// Small tolerance for the spherical math round trip.
		assert.GreaterOrEqual(t, d, minR-0.5)
		assert.LessOrEqual(t, d, maxR+0.5)
		assert.GreaterOrEqual(t, res.RadiusUsed, minR)
		assert.LessOrEqual(t, res.RadiusUsed, maxR)
	}
}

func TestFuzz_ZeroMaxReturnsExact(t *testing.T) {
	f := NewFuzzer()
	res, err := f.Fuzz(14.5995, 120.9842, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 14.5995, res.Lat)
	assert.Equal(t, 120.9842, res.Lng)
	assert.Zero(t, res.RadiusUsed)
}

func TestFuzz_EmptyRangeIsConfigError(t *testing.T) {
	f := NewFuzzer()
	_, err := f.Fuzz(14.5995, 120.9842, 100, 50)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFuzz_InvalidCoordinate(t *testing.T) {
	f := NewFuzzer()
	_, err := f.Fuzz(95, 120.9842, 30, 50)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}
