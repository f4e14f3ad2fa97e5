package model

import (
	"fmt"
)

// Holds all external facing types and constants.

type LocationType int

const (
	LocationTypeAny LocationType = iota
	LocationTypeStation
	LocationTypePOI
	LocationTypeAddress
	LocationTypeCoord
)

func (t LocationType) String() string {
	switch t {
	case LocationTypeStation:
		return "station"
	case LocationTypePOI:
		return "poi"
	case LocationTypeAddress:
		return "address"
	case LocationTypeCoord:
		return "coord"
	}
	return "any"
}

// A geographical point in 1e6 fixed point degrees.
type Point struct {
	Lat int
	Lon int
}

func (p Point) LatDegrees() float64 {
	return float64(p.Lat) / 1e6
}

func (p Point) LonDegrees() float64 {
	return float64(p.Lon) / 1e6
}

func PointFromDegrees(lat, lon float64) Point {
	return Point{Lat: int(lat * 1e6), Lon: int(lon * 1e6)}
}

// A place a trip can start or end at. ID is the network's stable
// identifier for the location, when it has one. Lat/Lon are 1e6
// fixed point degrees, with (0, 0) meaning "no coordinate".
type Location struct {
	Type     LocationType
	ID       string
	Lat      int
	Lon      int
	Place    string
	Name     string
	Products ProductSet
}

// A location holding nothing but a coordinate.
func CoordLocation(lat, lon int) Location {
	return Location{Type: LocationTypeCoord, Lat: lat, Lon: lon}
}

func (l Location) HasID() bool {
	return l.ID != ""
}

func (l Location) HasCoord() bool {
	return l.Lat != 0 || l.Lon != 0
}

func (l Location) Coord() Point {
	return Point{Lat: l.Lat, Lon: l.Lon}
}

// Place and name combined, for display.
func (l Location) FullName() string {
	if l.Place != "" && l.Name != "" {
		return l.Place + ", " + l.Name
	}
	if l.Name != "" {
		return l.Name
	}
	if l.Place != "" {
		return l.Place
	}
	if l.HasCoord() {
		return fmt.Sprintf("%.6f/%.6f", l.LatDegrees(), l.LonDegrees())
	}
	return ""
}

func (l Location) LatDegrees() float64 {
	return float64(l.Lat) / 1e6
}

func (l Location) LonDegrees() float64 {
	return float64(l.Lon) / 1e6
}

// Reports whether two locations refer to the same place. An ID, when
// present on both, decides alone. Otherwise the coordinate decides,
// and as a last resort name+place.
func (l Location) Equal(o Location) bool {
	if l.HasID() && o.HasID() {
		return l.ID == o.ID
	}
	if l.HasCoord() && o.HasCoord() {
		return l.Lat == o.Lat && l.Lon == o.Lon
	}
	return l.Name == o.Name && l.Place == o.Place
}

// Checks the structural invariants: a coord location must carry a
// coordinate and no place/name.
func (l Location) Check() error {
	if l.Type == LocationTypeCoord {
		if !l.HasCoord() {
			return fmt.Errorf("coord location without coordinate")
		}
		if l.Place != "" || l.Name != "" {
			return fmt.Errorf("coord location with place/name")
		}
	}
	return nil
}

// A string identifying the location for trip id synthesis: the ID
// when present, else the coordinate, else name and place.
func (l Location) Ident() string {
	if l.HasID() {
		return l.ID
	}
	if l.HasCoord() {
		return fmt.Sprintf("%d/%d", l.Lat, l.Lon)
	}
	return l.Place + "-" + l.Name
}
