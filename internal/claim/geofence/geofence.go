// Package geofence checks that a claim is filed near the insured land.
package geofence

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"farmshield/internal/platform/config"
	dErrors "farmshield/pkg/domain-errors"
)

// DefaultEarthRadius is the mean earth radius in metres.
const DefaultEarthRadius = 6371e3

// Fence compares a filing location with a land centre.
type Fence struct {
	tolerance float64
	radius    float64
	mode      config.GeofenceMode
}

// Result is the outcome of a check. Outside results are only returned in
// warn mode; strict mode turns them into an error.
type Result struct {
	DistanceMeters float64
	Within         bool
}

func New(tolerance float64, radius float64, mode config.GeofenceMode) *Fence {
	if radius <= 0 {
		radius = DefaultEarthRadius
	}
	if mode != config.GeofenceStrict {
		mode = config.GeofenceWarn
	}
	return &Fence{tolerance: tolerance, radius: radius, mode: mode}
}

func FromConfig(cfg config.ClaimsConfig) *Fence {
	return New(cfg.GeofenceTolerance, cfg.EarthRadius, cfg.GeofenceMode)
}

func (f *Fence) Strict() bool {
	return f.mode == config.GeofenceStrict
}

// Check measures the great-circle distance between the two points given as
// latitude/longitude pairs.
func (f *Fence) Check(lat, lon, centerLat, centerLon float64) (Result, error) {
	dist := Distance(lat, lon, centerLat, centerLon, f.radius)
	res := Result{DistanceMeters: dist, Within: dist <= f.tolerance}
	if !res.Within && f.Strict() {
		return res, dErrors.New(dErrors.CodeOutOfGeofence,
			fmt.Sprintf("claim location is %.0f m from the insured land (limit %.0f m)", dist, f.tolerance))
	}
	return res, nil
}

// Distance is the haversine distance in metres on a sphere of the given radius.
func Distance(lat1, lon1, lat2, lon2, radius float64) float64 {
	d := geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
	return d * radius / orb.EarthRadius
}
