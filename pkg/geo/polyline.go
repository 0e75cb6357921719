package geo

import (
	"errors"
	"strings"
)

// polylinePrecision is the fixed scaling of the encoded format: coordinates
// are rounded to 5 decimal digits before delta encoding.
const polylinePrecision = 1e5

// ErrInvalidPolyline is returned when an encoded string is truncated or
// contains bytes outside the valid character range.
var ErrInvalidPolyline = errors.New("geo: invalid polyline encoding")

// EncodePolyline encodes a path using the standard variable-length
// delta-encoded coordinate string format (5-digit precision), compatible
// with the directions backend's polylines.
func EncodePolyline(path []Point) string {
	var sb strings.Builder
	var prevLat, prevLng int64

	for _, p := range path {
		lat := round5(p.Lat)
		lng := round5(p.Lng)
		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return sb.String()
}

// DecodePolyline decodes an encoded coordinate string into a path. A
// malformed string yields ErrInvalidPolyline so the caller can drop the
// offending item and keep its siblings.
func DecodePolyline(encoded string) ([]Point, error) {
	var path []Point
	var lat, lng int64
	i := 0

	for i < len(encoded) {
		dLat, n, err := decodeValue(encoded[i:])
		if err != nil {
			return nil, err
		}
		i += n

		dLng, n, err := decodeValue(encoded[i:])
		if err != nil {
			return nil, err
		}
		i += n

		lat += dLat
		lng += dLng
		path = append(path, Point{
			Lat: float64(lat) / polylinePrecision,
			Lng: float64(lng) / polylinePrecision,
		})
	}
	return path, nil
}

func round5(v float64) int64 {
	if v < 0 {
		return int64(v*polylinePrecision - 0.5)
	}
	return int64(v*polylinePrecision + 0.5)
}

// encodeValue writes one signed delta as left-shifted, sign-inverted,
// 5-bit chunked characters offset by 63.
func encodeValue(sb *strings.Builder, v int64) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}

// decodeValue reads one signed delta, returning the value and the number
// of bytes consumed.
func decodeValue(s string) (int64, int, error) {
	var result int64
	var shift uint
	for i := 0; i < len(s); i++ {
		c := int64(s[i]) - 63
		if c < 0 || c > 0x3f {
			return 0, 0, ErrInvalidPolyline
		}
		result |= (c & 0x1f) << shift
		if c < 0x20 {
			value := result >> 1
			if result&1 != 0 {
				value = ^value
			}
			return value, i + 1, nil
		}
		shift += 5
	}
	return 0, 0, ErrInvalidPolyline
}
