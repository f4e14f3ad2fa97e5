package storage

import (
	"errors"
	"time"

	"github.com/voyagekit/transit/model"
)

var ErrTripNotFound = errors.New("trip not found")

// Storage holds the local trip cache, favorite locations and search
// history for any number of transit networks. Implementations must
// keep each network's data separate.
type Storage interface {
	// Decomposes a trip into the normalized tables and writes it
	// in a single transaction. Locations and lines shared with
	// previously written trips are deduplicated. Writing a trip
	// id that already exists replaces its legs.
	WriteTrip(network string, trip *model.Trip) error

	// Reconstructs a trip from the normalized tables. Returns
	// ErrTripNotFound if the id is unknown.
	GetTrip(network string, id string) (*model.Trip, error)

	// All cached trips for a network, ordered by first departure.
	ListTrips(network string) ([]*model.Trip, error)

	// Deletes every trip whose last arrival predates cutoff, then
	// drops stops, lines and locations no longer referenced by
	// any remaining row. Runs as one transaction. Returns the
	// number of trips removed.
	SweepTrips(cutoff time.Time) (int64, error)

	// All favorites for a network, most used first.
	ListFavorites(network string) ([]*FavoriteLocation, error)

	// Finds a favorite by exact field match. Returns nil (and no
	// error) when there is none.
	FindFavorite(network string, loc model.Location) (*FavoriteLocation, error)

	InsertFavorite(network string, loc model.Location) (*FavoriteLocation, error)

	// Increments the favorite's usage counter for the given role.
	BumpFavorite(id int64, role FavoriteRole) error

	// Records a search. A search with the same endpoints only has
	// its last-used timestamp refreshed.
	WriteSearch(s Search) error

	// All searches for a network, most recently used first.
	ListSearches(network string) ([]Search, error)

	Close() error
}

// The position a location took in a query.
type FavoriteRole int

const (
	RoleFrom FavoriteRole = iota
	RoleVia
	RoleTo
)

// A location the user has planned trips with, and how often it held
// each role.
type FavoriteLocation struct {
	ID       int64
	Network  string
	Location model.Location

	FromCount int
	ViaCount  int
	ToCount   int
}

func (f *FavoriteLocation) UseCount() int {
	return f.FromCount + f.ViaCount + f.ToCount
}

// One remembered trip search. Endpoints reference favorite rows; a
// ViaFavorite of 0 means the search had no via.
type Search struct {
	UID          string
	Network      string
	FromFavorite int64
	ViaFavorite  int64
	ToFavorite   int64
	CreatedAt    time.Time
	LastUsed     time.Time
	Pinned       bool
}
