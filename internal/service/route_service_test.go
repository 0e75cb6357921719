package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayline/backend/pkg/geo"
)

var (
	testOrigin = geo.Point{Lat: 21.1904, Lng: 81.2849}
	testDest   = geo.Point{Lat: 21.2000, Lng: 81.3000}
)

func TestFetchRoutesFallbackWhenBackendUnreachable(t *testing.T) {
	// Point at a server that is already closed.
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	svc := NewRouteService("", srv.URL)

	routes := svc.FetchRoutes(context.Background(), testOrigin, testDest, true)
	require.Len(t, routes, 1)

	route := routes[0]
	assert.True(t, route.IsFallback)
	// 50 interpolated points plus the two endpoints.
	assert.Len(t, route.Points, 52)
	assert.Equal(t, testOrigin, route.Points[0])
	assert.Equal(t, testDest, route.Points[51])

	dist := geo.Distance(testOrigin, testDest)
	assert.InDelta(t, dist, route.DistanceMeters, 1)
	assert.InDelta(t, dist/13.9, route.DurationSeconds, 1)

	require.Len(t, route.Steps, 1)
	assert.Contains(t, route.Steps[0].Instruction, "straight")
}

func TestFetchRoutesFallbackOnNonSuccessStatus(t *testing.T) {
	for _, status := range []string{"ZERO_RESULTS", "OVER_QUERY_LIMIT", "REQUEST_DENIED"} {
		t.Run(status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"status": %q, "routes": []}`, status)
			}))
			defer srv.Close()

			routes := NewRouteService("", srv.URL).FetchRoutes(context.Background(), testOrigin, testDest, false)
			require.Len(t, routes, 1)
			assert.True(t, routes[0].IsFallback)
		})
	}
}

func directionsBody(stepPoly1, stepPoly2, overview string) string {
	return fmt.Sprintf(`{
		"status": "OK",
		"routes": [{
			"summary": "NH 53",
			"overview_polyline": {"points": %q},
			"legs": [{
				"distance": {"value": 1200, "text": "1.2 km"},
				"duration": {"value": 180, "text": "3 mins"},
				"steps": [
					{
						"html_instructions": "Head <b>north</b> toward Station Rd",
						"maneuver": "",
						"distance": {"value": 700, "text": "0.7 km"},
						"duration": {"value": 100, "text": "2 mins"},
						"end_location": {"lat": 21.1950, "lng": 81.2900},
						"polyline": {"points": %q}
					},
					{
						"html_instructions": "Turn <b>left</b> onto NH 53",
						"maneuver": "turn-left",
						"distance": {"value": 500, "text": "0.5 km"},
						"duration": {"value": 80, "text": "1 min"},
						"end_location": {"lat": 21.2000, "lng": 81.3000},
						"polyline": {"points": %q}
					}
				]
			}]
		}]
	}`, overview, stepPoly1, stepPoly2)
}

func TestFetchRoutesParsesBackendPayload(t *testing.T) {
	seg1 := []geo.Point{testOrigin, {Lat: 21.1950, Lng: 81.2900}}
	seg2 := []geo.Point{{Lat: 21.1950, Lng: 81.2900}, testDest}
	body := directionsBody(geo.EncodePolyline(seg1), geo.EncodePolyline(seg2), geo.EncodePolyline(append(seg1, testDest)))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/directions/json")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	routes := NewRouteService("key", srv.URL).FetchRoutes(context.Background(), testOrigin, testDest, false)
	require.Len(t, routes, 1)
	route := routes[0]

	assert.False(t, route.IsFallback)
	assert.Equal(t, "NH 53", route.Summary)
	assert.InDelta(t, 1200, route.DistanceMeters, 0.1)
	assert.InDelta(t, 180, route.DurationSeconds, 0.1)

	// Step segments concatenated with the duplicated joint removed.
	require.Len(t, route.Points, 3)
	assert.InDelta(t, testOrigin.Lat, route.Points[0].Lat, 1e-5)
	assert.InDelta(t, testDest.Lng, route.Points[2].Lng, 1e-5)

	require.Len(t, route.Steps, 2)
	assert.Equal(t, "Head north toward Station Rd", route.Steps[0].Instruction)
	assert.Equal(t, "Turn left onto NH 53", route.Steps[1].Instruction)
	assert.Equal(t, "turn-left", route.Steps[1].Maneuver)
	assert.Equal(t, 0, route.Steps[0].Index)
	assert.Equal(t, 1, route.Steps[1].Index)
}

func TestFetchRoutesDropsUndecodableAlternative(t *testing.T) {
	good := geo.EncodePolyline([]geo.Point{testOrigin, testDest})
	body := fmt.Sprintf(`{
		"status": "OK",
		"routes": [
			{
				"summary": "good",
				"overview_polyline": {"points": %q},
				"legs": [{"distance": {"value": 1800, "text": ""}, "duration": {"value": 240, "text": ""}, "steps": []}]
			},
			{
				"summary": "bad",
				"overview_polyline": {"points": "_p~iF~ps|U_"},
				"legs": [{"distance": {"value": 1900, "text": ""}, "duration": {"value": 250, "text": ""}, "steps": []}]
			}
		]
	}`, good)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	routes := NewRouteService("key", srv.URL).FetchRoutes(context.Background(), testOrigin, testDest, true)
	require.Len(t, routes, 1)
	assert.Equal(t, "good", routes[0].Summary)
	assert.False(t, routes[0].IsFallback)
}

func TestFetchRoutesUsesOverviewWhenStepsLackGeometry(t *testing.T) {
	overview := geo.EncodePolyline([]geo.Point{testOrigin, {Lat: 21.195, Lng: 81.292}, testDest})
	body := fmt.Sprintf(`{
		"status": "OK",
		"routes": [{
			"summary": "coarse",
			"overview_polyline": {"points": %q},
			"legs": [{"distance": {"value": 2000, "text": ""}, "duration": {"value": 300, "text": ""}, "steps": []}]
		}]
	}`, overview)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	routes := NewRouteService("key", srv.URL).FetchRoutes(context.Background(), testOrigin, testDest, false)
	require.Len(t, routes, 1)
	assert.Len(t, routes[0].Points, 3)
}

func TestProbeTravelTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "now", r.URL.Query().Get("departure_time"))
		fmt.Fprint(w, `{
			"status": "OK",
			"routes": [{
				"overview_polyline": {"points": ""},
				"legs": [{
					"distance": {"value": 100, "text": ""},
					"duration": {"value": 10, "text": ""},
					"duration_in_traffic": {"value": 25, "text": ""},
					"steps": []
				}]
			}]
		}`)
	}))
	defer srv.Close()

	live, free, err := NewRouteService("key", srv.URL).ProbeTravelTime(context.Background(), testOrigin, testDest)
	require.NoError(t, err)
	assert.Equal(t, 25.0, live)
	assert.Equal(t, 10.0, free)
}

func TestProbeTravelTimeErrorsOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, _, err := NewRouteService("", srv.URL).ProbeTravelTime(context.Background(), testOrigin, testDest)
	assert.Error(t, err)
}

func TestStripMarkup(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Turn <b>left</b> onto Market St", "Turn left onto Market St"},
		{"Continue onto GE Rd<div style=\"font-size:0.9em\">Pass by the temple</div>", "Continue onto GE Rd Pass by the temple"},
		{"plain text", "plain text"},
		{"A &amp; B", "A & B"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, stripMarkup(tc.in))
	}
}
