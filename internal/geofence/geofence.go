// Package geofence classifies points against circular zones.
package geofence

import (
	"math"
	"time"

	"shiptwin/internal/model"
)

const earthRadiusMeters = 6371000

// Distance returns the great-circle distance between a and b in metres.
func Distance(a, b model.Point) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Evaluate reports whether p lies inside the primary zone or any allowed
// zone of gf. A point exactly on a zone boundary is inside.
func Evaluate(gf *model.Geofence, p model.Point, now time.Time) model.Containment {
	res := model.Containment{Zone: -1, NearestDistance: math.Inf(1), CheckedAt: now}
	if gf == nil {
		return res
	}
	for i, z := range gf.Zones() {
		dist := Distance(p, z.Center)
		if dist < res.NearestDistance {
			res.NearestDistance = dist
		}
		if !res.Inside && dist <= z.Radius {
			res.Inside = true
			res.Zone = i
		}
	}
	return res
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
