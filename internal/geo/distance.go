package geo

import "math"

// EarthRadius is the mean radius of the Earth in metres.
const EarthRadius = 6371e3

// Distance computes the Haversine great-circle distance between two
// points given in degrees. The result is in metres.
// See http://www.movable-type.co.uk/scripts/latlong.html
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := toRad(lat1)
	phi2 := toRad(lat2)
	dPhi := toRad(lat2 - lat1)
	dLambda := toRad(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// Box is a lat/lng rectangle used to prefilter rows before the exact
// distance check.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox returns a box that contains every point within radius metres
// of (lat, lng). Near the poles or across the antimeridian the longitude
// range widens to the whole globe.
func BoundingBox(lat, lng, radius float64) Box {
	angular := radius / EarthRadius
	dLat := angular * 180 / math.Pi

	b := Box{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
		MinLng: -180,
		MaxLng: 180,
	}

	if b.MinLat <= -90 || b.MaxLat >= 90 {
		return b
	}

	s := math.Sin(angular) / math.Cos(toRad(lat))
	if s >= 1 {
		return b
	}
	dLng := math.Asin(s) * 180 / math.Pi
	if lng-dLng < -180 || lng+dLng > 180 {
		return b
	}

	b.MinLng = lng - dLng
	b.MaxLng = lng + dLng
	return b
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
