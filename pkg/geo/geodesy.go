// Package geo provides the spherical-earth geodesy primitives the routing
// engine is built on: great-circle distance, bearings, forward projection,
// point-to-path distance and the Google polyline codec. All functions are
// pure; none perform I/O.
package geo

import "math"

// EarthRadiusM is the mean earth radius in meters (spherical model).
const EarthRadiusM = 6371000.0

// Point is a WGS-84 coordinate pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the haversine great-circle distance between a and b in
// meters. Symmetric; zero for coincident points.
func Distance(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusM * c
}

// Bearing returns the initial bearing from a to b in degrees, normalized to
// [0, 360). Coincident points return 0 by convention.
func Bearing(a, b Point) float64 {
	if a == b {
		return 0
	}
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLng := toRad(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	deg := toDeg(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// DestinationPoint projects origin forward by distanceM meters along
// bearingDeg, returning the resulting point on the sphere.
func DestinationPoint(origin Point, distanceM, bearingDeg float64) Point {
	ad := distanceM / EarthRadiusM // angular distance
	brg := toRad(bearingDeg)
	lat1 := toRad(origin.Lat)
	lng1 := toRad(origin.Lng)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ad) +
		math.Cos(lat1)*math.Sin(ad)*math.Cos(brg))
	lng2 := lng1 + math.Atan2(
		math.Sin(brg)*math.Sin(ad)*math.Cos(lat1),
		math.Cos(ad)-math.Sin(lat1)*math.Sin(lat2),
	)

	lng := toDeg(lng2)
	// Normalize longitude to [-180, 180)
	lng = math.Mod(lng+540, 360) - 180

	return Point{Lat: toDeg(lat2), Lng: lng}
}

// AngleDifference returns the signed shortest angular difference b-a in
// degrees, in (-180, 180]. Zero means the bearings agree.
func AngleDifference(a, b float64) float64 {
	d := math.Mod(b-a, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// Interpolate returns the point a fraction t of the way from a to b using
// linear lat/lng interpolation. Good enough at hyperlocal scale; not a
// geodesic midpoint.
func Interpolate(a, b Point, t float64) Point {
	return Point{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lng: a.Lng + t*(b.Lng-a.Lng),
	}
}

// DistanceToSegment returns the distance in meters from p to the segment
// [a, b], projecting onto a local planar approximation centered on a. The
// same approximation is applied to every segment so comparisons along a
// path are consistent.
func DistanceToSegment(p, a, b Point) float64 {
	// Equirectangular projection: x east, y north, meters.
	cosLat := math.Cos(toRad(a.Lat))
	ax, ay := 0.0, 0.0
	bx := toRad(b.Lng-a.Lng) * cosLat * EarthRadiusM
	by := toRad(b.Lat-a.Lat) * EarthRadiusM
	px := toRad(p.Lng-a.Lng) * cosLat * EarthRadiusM
	py := toRad(p.Lat-a.Lat) * EarthRadiusM

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}

	// Clamp the projection parameter to the segment.
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	cx := ax + t*dx
	cy := ay + t*dy
	return math.Hypot(px-cx, py-cy)
}

// DistanceToPath returns the minimum distance in meters from p to the
// polyline formed by consecutive path points. A single-point path degrades
// to point distance; an empty path returns +Inf.
func DistanceToPath(p Point, path []Point) float64 {
	switch len(path) {
	case 0:
		return math.Inf(1)
	case 1:
		return Distance(p, path[0])
	}

	min := math.Inf(1)
	for i := 0; i < len(path)-1; i++ {
		if d := DistanceToSegment(p, path[i], path[i+1]); d < min {
			min = d
		}
	}
	return min
}

// NearestPointIndex returns the index of the path vertex closest to p and
// the great-circle distance to it. Returns (-1, +Inf) for an empty path.
func NearestPointIndex(p Point, path []Point) (int, float64) {
	idx := -1
	min := math.Inf(1)
	for i, pt := range path {
		if d := Distance(p, pt); d < min {
			min = d
			idx = i
		}
	}
	return idx, min
}
