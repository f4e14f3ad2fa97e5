package transit

import (
	"context"
	"time"

	"github.com/voyagekit/transit/model"
)

// Outcome of a provider query. Everything but StatusOK maps to a
// user-facing error, see ProviderError.
type QueryStatus int

const (
	StatusOK QueryStatus = iota
	StatusAmbiguous
	StatusTooClose
	StatusUnknownFrom
	StatusUnknownVia
	StatusUnknownTo
	StatusUnknownLocation
	StatusUnresolvableAddress
	StatusNoTrips
	StatusInvalidDate
	StatusServiceDown
)

// A trip search request. When is interpreted as the earliest
// departure, or as the latest arrival if ArriveBy is set. A zero
// Products means "all products".
type TripQuery struct {
	From     model.Location
	Via      *model.Location
	To       model.Location
	When     time.Time
	ArriveBy bool
	Products model.ProductSet
}

// Opaque continuation for loading trips before/after the ones
// already returned. Callers must check the capability flags before
// paginating in a direction.
type QueryContext interface {
	CanQueryEarlier() bool
	CanQueryLater() bool
}

type TripsResult struct {
	Status QueryStatus

	// Endpoints as the network resolved them.
	From model.Location
	Via  *model.Location
	To   model.Location

	Trips   []*model.Trip
	Context QueryContext

	// Candidates, set when Status is StatusAmbiguous.
	AmbiguousFrom []model.Location
	AmbiguousVia  []model.Location
	AmbiguousTo   []model.Location
}

// A vehicle leaving a stop.
type Departure struct {
	Line        model.Line
	Stop        model.Stop
	Destination *model.Location
}

// A transit network's query capabilities. Implementations talk to
// whatever backend serves the network: an HTTP API, a local
// timetable, a test double.
type Provider interface {
	QueryTrips(ctx context.Context, query TripQuery) (*TripsResult, error)

	// Extends a previous query in the given direction. The
	// QueryContext must come from an earlier result.
	QueryMoreTrips(ctx context.Context, qc QueryContext, later bool) (*TripsResult, error)

	QueryDepartures(ctx context.Context, stationID string, when time.Time, limit int) ([]Departure, error)

	// Locations matching a partial user input, best first.
	SuggestLocations(ctx context.Context, constraint string, limit int) ([]model.Location, error)

	// Locations around a point, nearest first.
	QueryNearbyLocations(ctx context.Context, at model.Point, limit int) ([]model.Location, error)
}
