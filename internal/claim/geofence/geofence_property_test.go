//go:build property

package geofence

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"farmshield/internal/platform/config"
)

// TestDistanceProperties checks the metric the geofence relies on.
// Property: d(a,a)=0; d(a,b)=d(b,a); d(a,c) <= d(a,b)+d(b,c); d <= pi*R.
func TestDistanceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	lat := gen.Float64Range(-89, 89)
	lon := gen.Float64Range(-179, 179)
	const eps = 1e-6

	properties.Property("identity and symmetry", prop.ForAll(
		func(lat1, lon1, lat2, lon2 float64) bool {
			if Distance(lat1, lon1, lat1, lon1, DefaultEarthRadius) > eps {
				return false
			}
			ab := Distance(lat1, lon1, lat2, lon2, DefaultEarthRadius)
			ba := Distance(lat2, lon2, lat1, lon1, DefaultEarthRadius)
			return math.Abs(ab-ba) < eps && ab >= 0 && ab <= math.Pi*DefaultEarthRadius+eps
		},
		lat, lon, lat, lon,
	))

	properties.Property("triangle inequality", prop.ForAll(
		func(lat1, lon1, lat2, lon2, lat3, lon3 float64) bool {
			ab := Distance(lat1, lon1, lat2, lon2, DefaultEarthRadius)
			bc := Distance(lat2, lon2, lat3, lon3, DefaultEarthRadius)
			ac := Distance(lat1, lon1, lat3, lon3, DefaultEarthRadius)
			return ac <= ab+bc+1e-3
		},
		lat, lon, lat, lon, lat, lon,
	))

	properties.Property("strict fence rejects exactly what warn flags", prop.ForAll(
		func(lat1, lon1, dLat float64) bool {
			warn := New(500, 0, config.GeofenceWarn)
			strict := New(500, 0, config.GeofenceStrict)
			w, werr := warn.Check(lat1+dLat, lon1, lat1, lon1)
			_, serr := strict.Check(lat1+dLat, lon1, lat1, lon1)
			return werr == nil && (serr != nil) == !w.Within
		},
		gen.Float64Range(-80, 80), lon, gen.Float64Range(-0.01, 0.01),
	))

	properties.TestingRun(t)
}
