package geo

import "math"

// EarthRadiusKm is the spherical-earth radius used everywhere.
const EarthRadiusKm = 6371.0

// -----------------------------------------------------------------------------

// Distance returns the haversine great-circle distance in kilometers.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// -----------------------------------------------------------------------------

// Bearing returns the initial bearing in degrees [0, 360) from point 1 to point 2.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	y := math.Sin(toRad(lon2-lon1)) * math.Cos(toRad(lat2))
	x := math.Cos(toRad(lat1))*math.Sin(toRad(lat2)) -
		math.Sin(toRad(lat1))*math.Cos(toRad(lat2))*math.Cos(toRad(lon2-lon1))
	brng := math.Atan2(y, x) * 180.0 / math.Pi
	if brng < 0 {
		brng += 360
	}
	return brng
}

func toRad(d float64) float64 { return d * math.Pi / 180 }
