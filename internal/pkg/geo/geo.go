// Package geo holds the great-circle distance and radius checks shared by
// every listing kind.
package geo

import (
	"math"

	"handyhub-backend/internal/domain"
)

// EarthRadiusKm is the IUGG mean earth radius.
const EarthRadiusKm = 6371.0088

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FromLocation returns the coordinates of a listing location.
func FromLocation(l domain.Location) Point {
	return Point{Lat: l.Lat, Lng: l.Lng}
}

// Validate rejects NaN, infinite and out-of-range coordinates.
func Validate(p Point) error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return domain.NewValidationError("lat", "latitude must be within [-90, 90]")
	}
	if math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) || p.Lng < -180 || p.Lng > 180 {
		return domain.NewValidationError("lng", "longitude must be within [-180, 180]")
	}
	return nil
}

// DistanceKm is the haversine distance between a and b. The intermediate
// value is clamped to [0,1] so rounding on antipodal points cannot produce NaN.
func DistanceKm(a, b Point) float64 {
	if a == b {
		return 0
	}
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := lat2 - lat1
	dLng := toRad(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// SafeDistanceKm validates both points before measuring.
func SafeDistanceKm(a, b Point) (float64, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}
	return DistanceKm(a, b), nil
}

// WithinRadius reports DistanceKm(origin, listing location) <= listing target radius.
func WithinRadius(origin Point, l *domain.Listing) bool {
	return DistanceKm(origin, FromLocation(l.Location)) <= l.TargetRadiusKm
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
