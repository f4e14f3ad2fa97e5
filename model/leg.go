package model

import (
	"time"
)

// How an individual (non-transit) leg is covered.
type IndividualMode int

const (
	ModeWalk IndividualMode = iota
	ModeBike
	ModeCar
	ModeTransfer
	ModeCheckIn
	ModeCheckOut
)

func (m IndividualMode) String() string {
	switch m {
	case ModeWalk:
		return "walk"
	case ModeBike:
		return "bike"
	case ModeCar:
		return "car"
	case ModeTransfer:
		return "transfer"
	case ModeCheckIn:
		return "check-in"
	case ModeCheckOut:
		return "check-out"
	}
	return "unknown"
}

// One uninterrupted segment of a trip. Either a PublicLeg (riding a
// line) or an IndividualLeg (walking, cycling, driving).
type Leg interface {
	DepartureLocation() Location
	ArrivalLocation() Location

	// Effective times. Zero when unknown.
	DepartureTime() time.Time
	ArrivalTime() time.Time

	// The leg's geometry. When no path was supplied, one is
	// interpolated from departure via intermediates to arrival.
	Path() []Point

	MinTime() time.Time
	MaxTime() time.Time
}

// A leg riding one transit line.
type PublicLeg struct {
	Line         Line
	Destination  *Location
	Departure    Stop
	Arrival      Stop
	Intermediate []Stop
	PathCoords   []Point
	Message      string
}

func (l *PublicLeg) DepartureLocation() Location { return l.Departure.Location }
func (l *PublicLeg) ArrivalLocation() Location   { return l.Arrival.Location }

func (l *PublicLeg) DepartureTime() time.Time {
	if t := l.Departure.DepartureTime(false); t != nil {
		return *t
	}
	return time.Time{}
}

func (l *PublicLeg) ArrivalTime() time.Time {
	if t := l.Arrival.ArrivalTime(false); t != nil {
		return *t
	}
	return time.Time{}
}

func (l *PublicLeg) PlannedDepartureTime() time.Time {
	if t := l.Departure.DepartureTime(true); t != nil {
		return *t
	}
	return time.Time{}
}

func (l *PublicLeg) PlannedArrivalTime() time.Time {
	if t := l.Arrival.ArrivalTime(true); t != nil {
		return *t
	}
	return time.Time{}
}

func (l *PublicLeg) DepartureDelay() *time.Duration { return l.Departure.DepartureDelay() }
func (l *PublicLeg) ArrivalDelay() *time.Duration   { return l.Arrival.ArrivalDelay() }

func (l *PublicLeg) Path() []Point {
	if len(l.PathCoords) > 0 {
		return l.PathCoords
	}
	path := []Point{}
	if l.Departure.Location.HasCoord() {
		path = append(path, l.Departure.Location.Coord())
	}
	for _, s := range l.Intermediate {
		if s.Location.HasCoord() {
			path = append(path, s.Location.Coord())
		}
	}
	if l.Arrival.Location.HasCoord() {
		path = append(path, l.Arrival.Location.Coord())
	}
	return path
}

func (l *PublicLeg) MinTime() time.Time {
	if t := l.Departure.MinTime(); t != nil {
		return *t
	}
	return time.Time{}
}

func (l *PublicLeg) MaxTime() time.Time {
	if t := l.Arrival.MaxTime(); t != nil {
		return *t
	}
	return time.Time{}
}

// A leg covered without a transit vehicle.
type IndividualLeg struct {
	Mode        IndividualMode
	Departure   Location
	DepartureAt time.Time
	Arrival     Location
	ArrivalAt   time.Time
	PathCoords  []Point

	// Meters, 0 when unknown.
	Distance int
}

func (l *IndividualLeg) DepartureLocation() Location { return l.Departure }
func (l *IndividualLeg) ArrivalLocation() Location   { return l.Arrival }
func (l *IndividualLeg) DepartureTime() time.Time    { return l.DepartureAt }
func (l *IndividualLeg) ArrivalTime() time.Time      { return l.ArrivalAt }

func (l *IndividualLeg) Path() []Point {
	if len(l.PathCoords) > 0 {
		return l.PathCoords
	}
	path := []Point{}
	if l.Departure.HasCoord() {
		path = append(path, l.Departure.Coord())
	}
	if l.Arrival.HasCoord() {
		path = append(path, l.Arrival.Coord())
	}
	return path
}

func (l *IndividualLeg) MinTime() time.Time { return l.DepartureAt }
func (l *IndividualLeg) MaxTime() time.Time { return l.ArrivalAt }
