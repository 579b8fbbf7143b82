package recommendation

import (
	"math"
	"strconv"
	"strings"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points in kilometres (Haversine)
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// ParseCoordinates parses decimal-string coordinates. Missing, non-numeric
// or out-of-range values yield ok=false and the pair is treated as absent.
func ParseCoordinates(lat, lon *string) (float64, float64, bool) {
	if lat == nil || lon == nil {
		return 0, 0, false
	}

	latVal, err := strconv.ParseFloat(strings.TrimSpace(*lat), 64)
	if err != nil || math.IsNaN(latVal) {
		return 0, 0, false
	}
	lonVal, err := strconv.ParseFloat(strings.TrimSpace(*lon), 64)
	if err != nil || math.IsNaN(lonVal) {
		return 0, 0, false
	}

	if latVal < -90 || latVal > 90 || lonVal < -180 || lonVal > 180 {
		return 0, 0, false
	}

	return latVal, lonVal, true
}
