package storage

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/voyagekit/transit/model"
)

func HaversineDistance(aLat, aLon, bLat, bLon float64) float64 {
	const earthRadiusKm = 6371

	aLatRad := aLat * math.Pi / 180
	aLonRad := aLon * math.Pi / 180
	bLatRad := bLat * math.Pi / 180
	bLonRad := bLon * math.Pi / 180
	deltaLat := aLatRad - bLatRad
	deltaLon := aLonRad - bLonRad

	a := math.Cos(aLatRad)*math.Cos(bLatRad)*math.Pow(math.Sin(deltaLon/2), 2) + math.Pow(math.Sin(deltaLat/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return c * earthRadiusKm
}

// Encodes a leg path as "lat,lon lat,lon ...". Empty paths encode to
// the empty string; on read, an empty path means "interpolate".
func EncodePath(path []model.Point) string {
	if len(path) == 0 {
		return ""
	}
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p.Lat) + "," + strconv.Itoa(p.Lon)
	}
	return strings.Join(parts, " ")
}

func DecodePath(encoded string) ([]model.Point, error) {
	if encoded == "" {
		return nil, nil
	}
	parts := strings.Split(encoded, " ")
	path := make([]model.Point, len(parts))
	for i, part := range parts {
		latlon := strings.Split(part, ",")
		if len(latlon) != 2 {
			return nil, fmt.Errorf("invalid path point %q", part)
		}
		lat, err := strconv.Atoi(latlon[0])
		if err != nil {
			return nil, fmt.Errorf("invalid path latitude %q", latlon[0])
		}
		lon, err := strconv.Atoi(latlon[1])
		if err != nil {
			return nil, fmt.Errorf("invalid path longitude %q", latlon[1])
		}
		path[i] = model.Point{Lat: lat, Lon: lon}
	}
	return path, nil
}
