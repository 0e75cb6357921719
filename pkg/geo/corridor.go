package geo

// maxCorridorVertices bounds the size of a corridor polygon. Paths with
// more points are downsampled by even stride before buffering, so the
// polygon never exceeds roughly 2*maxCorridorVertices vertices regardless
// of input length.
const maxCorridorVertices = 60

// CorridorBuffer builds a closed polygon tracing a fixed-width corridor
// around path. For each retained path point the local bearing (from the
// adjacent points) is offset ±90° and projected halfWidthM meters to each
// side; the left side is walked forward, the right side backward, and the
// ring is closed on the first vertex. Paths with fewer than two points
// return nil.
func CorridorBuffer(path []Point, halfWidthM float64) []Point {
	if len(path) < 2 {
		return nil
	}

	pts := downsample(path, maxCorridorVertices)

	left := make([]Point, 0, len(pts))
	right := make([]Point, 0, len(pts))

	for i, p := range pts {
		brg := localBearing(pts, i)
		left = append(left, DestinationPoint(p, halfWidthM, normalizeDeg(brg-90)))
		right = append(right, DestinationPoint(p, halfWidthM, normalizeDeg(brg+90)))
	}

	polygon := make([]Point, 0, 2*len(pts)+1)
	polygon = append(polygon, left...)
	for i := len(right) - 1; i >= 0; i-- {
		polygon = append(polygon, right[i])
	}
	polygon = append(polygon, polygon[0]) // close the ring
	return polygon
}

// localBearing returns the travel direction at vertex i: toward the next
// point for all but the last vertex, from the previous point for the last.
func localBearing(pts []Point, i int) float64 {
	if i < len(pts)-1 {
		return Bearing(pts[i], pts[i+1])
	}
	return Bearing(pts[i-1], pts[i])
}

func normalizeDeg(d float64) float64 {
	for d < 0 {
		d += 360
	}
	for d >= 360 {
		d -= 360
	}
	return d
}

// downsample selects an even stride of at most max points, always keeping
// the final point so the corridor reaches the path's end.
func downsample(path []Point, max int) []Point {
	if len(path) <= max {
		return path
	}
	stride := (len(path) + max - 1) / max
	out := make([]Point, 0, max+1)
	for i := 0; i < len(path); i += stride {
		out = append(out, path[i])
	}
	if out[len(out)-1] != path[len(path)-1] {
		out = append(out, path[len(path)-1])
	}
	return out
}
