package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bhilai = Point{Lat: 21.1904, Lng: 81.2849}
	durg   = Point{Lat: 21.1901, Lng: 81.2830}
	raipur = Point{Lat: 21.2514, Lng: 81.6296}
)

func TestDistanceSymmetric(t *testing.T) {
	cases := []struct {
		name string
		a, b Point
	}{
		{"nearby", bhilai, durg},
		{"city pair", bhilai, raipur},
		{"across equator", Point{Lat: -10, Lng: 30}, Point{Lat: 10, Lng: -30}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, Distance(tc.a, tc.b), Distance(tc.b, tc.a), 1e-9)
		})
	}
}

func TestDistanceZeroForSamePoint(t *testing.T) {
	assert.Zero(t, Distance(bhilai, bhilai))
}

func TestDistanceKnownValue(t *testing.T) {
	// Bhilai to Raipur is roughly 36 km.
	d := Distance(bhilai, raipur)
	assert.InDelta(t, 36000, d, 1500)
}

func TestBearingRange(t *testing.T) {
	targets := []Point{durg, raipur, {Lat: 21.3, Lng: 81.2}, {Lat: 20.9, Lng: 81.3}}
	for _, to := range targets {
		b := Bearing(bhilai, to)
		assert.GreaterOrEqual(t, b, 0.0)
		assert.Less(t, b, 360.0)
	}
}

func TestBearingCardinalDirections(t *testing.T) {
	origin := Point{Lat: 0, Lng: 0}
	assert.InDelta(t, 0, Bearing(origin, Point{Lat: 1, Lng: 0}), 0.01)
	assert.InDelta(t, 90, Bearing(origin, Point{Lat: 0, Lng: 1}), 0.01)
	assert.InDelta(t, 180, Bearing(origin, Point{Lat: -1, Lng: 0}), 0.01)
	assert.InDelta(t, 270, Bearing(origin, Point{Lat: 0, Lng: -1}), 0.01)
}

func TestBearingCoincidentPointsIsZero(t *testing.T) {
	assert.Zero(t, Bearing(bhilai, bhilai))
}

func TestDestinationPointRoundTrip(t *testing.T) {
	for _, dist := range []float64{100, 1000, 25000} {
		brg := Bearing(bhilai, raipur)
		p := DestinationPoint(bhilai, dist, brg)

		assert.InDelta(t, dist, Distance(bhilai, p), dist*0.001+0.5)
		assert.InDelta(t, 0, AngleDifference(brg, Bearing(bhilai, p)), 0.5)
	}
}

func TestAngleDifference(t *testing.T) {
	cases := []struct {
		a, b, want float64
	}{
		{0, 0, 0},
		{90, 90, 0},
		{350, 10, 20},
		{10, 350, -20},
		{0, 180, 180},
		{180, 0, 180}, // result lives in (-180, 180]
		{45, 90, 45},
	}
	for _, tc := range cases {
		got := AngleDifference(tc.a, tc.b)
		assert.InDelta(t, tc.want, got, 1e-9, "angleDifference(%v, %v)", tc.a, tc.b)
		assert.Greater(t, got, -180.0)
		assert.LessOrEqual(t, got, 180.0)
	}
}

func TestInterpolateEndpoints(t *testing.T) {
	assert.Equal(t, bhilai, Interpolate(bhilai, raipur, 0))
	assert.Equal(t, raipur, Interpolate(bhilai, raipur, 1))

	mid := Interpolate(bhilai, raipur, 0.5)
	assert.InDelta(t, (bhilai.Lat+raipur.Lat)/2, mid.Lat, 1e-12)
	assert.InDelta(t, (bhilai.Lng+raipur.Lng)/2, mid.Lng, 1e-12)
}

func TestDistanceToSegment(t *testing.T) {
	a := Point{Lat: 21.19, Lng: 81.28}
	b := Point{Lat: 21.19, Lng: 81.30} // ~2km due east

	// Point north of the segment midpoint: perpendicular distance.
	p := DestinationPoint(Point{Lat: 21.19, Lng: 81.29}, 500, 0)
	assert.InDelta(t, 500, DistanceToSegment(p, a, b), 10)

	// Point beyond the end clamps to the endpoint.
	past := DestinationPoint(b, 300, 90)
	assert.InDelta(t, 300, DistanceToSegment(past, a, b), 10)

	// Degenerate segment degrades to point distance.
	assert.InDelta(t, Distance(p, a), DistanceToSegment(p, a, a), Distance(p, a)*0.01)
}

func TestDistanceToPath(t *testing.T) {
	path := []Point{
		{Lat: 21.19, Lng: 81.28},
		{Lat: 21.19, Lng: 81.29},
		{Lat: 21.19, Lng: 81.30},
	}
	p := DestinationPoint(Point{Lat: 21.19, Lng: 81.285}, 120, 180)
	assert.InDelta(t, 120, DistanceToPath(p, path), 5)

	assert.True(t, math.IsInf(DistanceToPath(p, nil), 1))
	assert.InDelta(t, Distance(p, path[0]), DistanceToPath(p, path[:1]), 1e-9)
}

func TestNearestPointIndex(t *testing.T) {
	path := []Point{
		{Lat: 21.19, Lng: 81.28},
		{Lat: 21.19, Lng: 81.29},
		{Lat: 21.19, Lng: 81.30},
	}
	near := DestinationPoint(path[1], 40, 0)
	idx, d := NearestPointIndex(near, path)
	require.Equal(t, 1, idx)
	assert.InDelta(t, 40, d, 2)

	idx, d = NearestPointIndex(near, nil)
	assert.Equal(t, -1, idx)
	assert.True(t, math.IsInf(d, 1))
}
