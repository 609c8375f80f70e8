// Package geo provides coordinate types and great-circle distance math.
package geo

import "math"

// earthRadiusMiles is the mean Earth radius used by the haversine formula.
const earthRadiusMiles = 3959.0

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the pair lies inside the WGS84 coordinate domain.
// A location needs valid coordinates to be considered routable.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180 &&
		!(c.Latitude == 0 && c.Longitude == 0)
}

// Distance returns the great-circle distance in miles between two points,
// rounded to two decimal places.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return round2(earthRadiusMiles * c)
}

// DistanceBetween is Distance over Coordinates values.
func DistanceBetween(a, b Coordinates) float64 {
	return Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
