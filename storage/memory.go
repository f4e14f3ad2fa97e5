package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/voyagekit/transit/model"
)

// In memory implementation of Storage below. Used in tests and as a
// throwaway cache. Trips are stored as passed in; callers must not
// mutate them afterwards.

type memoryTripKey struct {
	Network string
	TripID  string
}

type memorySearchKey struct {
	Network      string
	FromFavorite int64
	ViaFavorite  int64
	ToFavorite   int64
}

type MemoryStorage struct {
	mu sync.Mutex

	trips      map[memoryTripKey]*model.Trip
	tripOrder  []memoryTripKey
	favorites  []*FavoriteLocation
	nextFavID  int64
	searches   map[memorySearchKey]Search
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		trips:     map[memoryTripKey]*model.Trip{},
		searches:  map[memorySearchKey]Search{},
		nextFavID: 1,
	}
}

func (s *MemoryStorage) WriteTrip(network string, trip *model.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryTripKey{Network: network, TripID: trip.ID}
	if _, ok := s.trips[key]; !ok {
		s.tripOrder = append(s.tripOrder, key)
	}
	s.trips[key] = trip
	return nil
}

func (s *MemoryStorage) GetTrip(network string, id string) (*model.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trip, ok := s.trips[memoryTripKey{Network: network, TripID: id}]
	if !ok {
		return nil, ErrTripNotFound
	}
	return trip, nil
}

func (s *MemoryStorage) ListTrips(network string) ([]*model.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trips := []*model.Trip{}
	for _, key := range s.tripOrder {
		if key.Network != network {
			continue
		}
		trips = append(trips, s.trips[key])
	}
	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].FirstDepartureTime().Before(trips[j].FirstDepartureTime())
	})
	return trips, nil
}

func (s *MemoryStorage) SweepTrips(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	kept := s.tripOrder[:0]
	for _, key := range s.tripOrder {
		trip := s.trips[key]
		if trip.LastArrivalTime().Before(cutoff) {
			delete(s.trips, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	s.tripOrder = kept
	return removed, nil
}

func (s *MemoryStorage) ListFavorites(network string) ([]*FavoriteLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	favorites := []*FavoriteLocation{}
	for _, fav := range s.favorites {
		if fav.Network == network {
			favorites = append(favorites, fav)
		}
	}
	// Most used first, ties broken by name, matching the SQL backends.
	sort.SliceStable(favorites, func(i, j int) bool {
		if favorites[i].UseCount() != favorites[j].UseCount() {
			return favorites[i].UseCount() > favorites[j].UseCount()
		}
		return favorites[i].Location.Name < favorites[j].Location.Name
	})
	return favorites, nil
}

func (s *MemoryStorage) FindFavorite(network string, loc model.Location) (*FavoriteLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fav := range s.favorites {
		if fav.Network != network {
			continue
		}
		f := fav.Location
		if f.Type == loc.Type && f.ID == loc.ID &&
			f.Lat == loc.Lat && f.Lon == loc.Lon &&
			f.Place == loc.Place && f.Name == loc.Name {
			return fav, nil
		}
	}
	return nil, nil
}

func (s *MemoryStorage) InsertFavorite(network string, loc model.Location) (*FavoriteLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fav := &FavoriteLocation{
		ID:       s.nextFavID,
		Network:  network,
		Location: loc,
	}
	s.nextFavID++
	s.favorites = append(s.favorites, fav)
	return fav, nil
}

func (s *MemoryStorage) BumpFavorite(id int64, role FavoriteRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fav := range s.favorites {
		if fav.ID != id {
			continue
		}
		switch role {
		case RoleFrom:
			fav.FromCount++
		case RoleVia:
			fav.ViaCount++
		case RoleTo:
			fav.ToCount++
		}
		return nil
	}
	return nil
}

func (s *MemoryStorage) WriteSearch(search Search) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memorySearchKey{
		Network:      search.Network,
		FromFavorite: search.FromFavorite,
		ViaFavorite:  search.ViaFavorite,
		ToFavorite:   search.ToFavorite,
	}
	if existing, ok := s.searches[key]; ok {
		existing.LastUsed = search.LastUsed
		s.searches[key] = existing
		return nil
	}
	s.searches[key] = search
	return nil
}

func (s *MemoryStorage) ListSearches(network string) ([]Search, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	searches := []Search{}
	for _, search := range s.searches {
		if search.Network == network {
			searches = append(searches, search)
		}
	}
	sort.SliceStable(searches, func(i, j int) bool {
		if searches[i].Pinned != searches[j].Pinned {
			return searches[i].Pinned
		}
		return searches[i].LastUsed.After(searches[j].LastUsed)
	})
	return searches, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
