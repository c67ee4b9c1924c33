package utils

import "math"

const (
	// RadiusOfEarthInMeters is the mean Earth radius used by every distance in cabview.
	RadiusOfEarthInMeters = 6371010.0

	degToRad = math.Pi / 180
)

// CoordinateBounds is a latitude/longitude bounding box.
type CoordinateBounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Distance returns the great-circle distance in meters between two WGS84 points.
// Displacements under ~0.2 degrees (about 22km) use the equirectangular
// approximation, which stays well under a meter of error at that scale and
// covers every click-to-station comparison. Longer spans use the exact formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	if math.Abs(lat2-lat1) < 0.2 && math.Abs(lon2-lon1) < 0.2 {
		x := (lon2 - lon1) * degToRad * math.Cos((lat1+lat2)/2*degToRad)
		y := (lat2 - lat1) * degToRad
		return RadiusOfEarthInMeters * math.Sqrt(x*x+y*y)
	}

	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	deltaLambda := (lon2 - lon1) * degToRad

	cosPhi1, sinPhi1 := math.Cos(phi1), math.Sin(phi1)
	cosPhi2, sinPhi2 := math.Cos(phi2), math.Sin(phi2)
	cosDelta := math.Cos(deltaLambda)

	a := cosPhi2 * math.Sin(deltaLambda)
	b := cosPhi1*sinPhi2 - sinPhi1*cosPhi2*cosDelta
	y := math.Sqrt(a*a + b*b)
	x := sinPhi1*sinPhi2 + cosPhi1*cosPhi2*cosDelta

	return RadiusOfEarthInMeters * math.Atan2(y, x)
}

// ValidCoordinate reports whether lat/lon are finite and inside WGS84 ranges.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// CalculateBounds returns the box that contains every point within distance
// meters of (lat, lon).
func CalculateBounds(lat, lon, distance float64) CoordinateBounds {
	latRadians := lat * degToRad

	latOffset := distance / RadiusOfEarthInMeters
	lonOffset := distance / (math.Cos(latRadians) * RadiusOfEarthInMeters)

	return CoordinateBounds{
		MinLat: lat - latOffset/degToRad,
		MaxLat: lat + latOffset/degToRad,
		MinLon: lon - lonOffset/degToRad,
		MaxLon: lon + lonOffset/degToRad,
	}
}

// Contains reports whether the point lies inside b, edges included.
func (b CoordinateBounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Centroid averages the given coordinates. ok is false when no point is valid.
func Centroid(lats, lons []float64) (lat, lon float64, ok bool) {
	var n int
	for i := range lats {
		if i >= len(lons) || !ValidCoordinate(lats[i], lons[i]) {
			continue
		}
		lat += lats[i]
		lon += lons[i]
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	return lat / float64(n), lon / float64(n), true
}
