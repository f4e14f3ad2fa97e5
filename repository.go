package transit

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voyagekit/transit/model"
	"github.com/voyagekit/transit/storage"
)

const (
	// Cached trips older than this are dropped at startup.
	DefaultSweepMaxAge = 48 * time.Hour

	stateBufferSize = 16
	errBufferSize   = 4
)

// Pagination directions a repository can currently extend its result
// set in.
type Pagination int

const (
	PaginateNone Pagination = iota
	PaginateEarlier
	PaginateLater
	PaginateBoth
)

// A snapshot of an ongoing search, published on every change.
type SearchState struct {
	Loading bool
	Trips   []*model.Trip
}

// Repository runs trip searches against a Provider, deduplicates and
// caches the results, and keeps favorite locations and search
// history. At most one query is in flight at a time: starting a new
// search cancels the previous one, including its persistence step.
//
// Results and errors are published on channels rather than returned:
// observers read Updates for the evolving trip set, QueryErrors for
// failed searches and MoreErrors for failed pagination. Channel
// sends never block; the oldest unread value is dropped on overflow.
type Repository struct {
	SweepMaxAge time.Duration
	Logger      *log.Logger

	network  string
	provider Provider
	store    storage.Storage

	updates   chan SearchState
	queryErrs chan error
	moreErrs  chan error

	mu       sync.Mutex
	cancel   context.CancelFunc
	trips    []*model.Trip
	seen     map[string]bool
	queryCtx QueryContext
}

// Optional repository settings. Zero values fall back to
// DefaultSweepMaxAge and log.Default.
type RepositoryConfig struct {
	SweepMaxAge time.Duration
	Logger      *log.Logger
}

// Creates a Repository for one network. The retention sweep runs
// immediately, honoring the configured max age; a sweep failure is
// logged and otherwise ignored, the cache then simply carries stale
// rows until the next startup.
func NewRepository(network string, provider Provider, store storage.Storage, cfg ...RepositoryConfig) *Repository {
	maxAge := DefaultSweepMaxAge
	logger := log.Default()
	if len(cfg) > 0 {
		if cfg[0].SweepMaxAge > 0 {
			maxAge = cfg[0].SweepMaxAge
		}
		if cfg[0].Logger != nil {
			logger = cfg[0].Logger
		}
	}

	r := &Repository{
		SweepMaxAge: maxAge,
		Logger:      logger,

		network:  network,
		provider: provider,
		store:    store,

		updates:   make(chan SearchState, stateBufferSize),
		queryErrs: make(chan error, errBufferSize),
		moreErrs:  make(chan error, errBufferSize),

		seen: map[string]bool{},
	}

	if _, err := store.SweepTrips(time.Now().Add(-r.SweepMaxAge)); err != nil {
		r.Logger.Printf("trip cache sweep failed: %v", err)
	}

	return r
}

// The evolving result set of the current search.
func (r *Repository) Updates() <-chan SearchState {
	return r.updates
}

// Failures of initial searches.
func (r *Repository) QueryErrors() <-chan error {
	return r.queryErrs
}

// Failures of pagination ("load earlier/later") requests.
func (r *Repository) MoreErrors() <-chan error {
	return r.moreErrs
}

// Directions the current search can be extended in.
func (r *Repository) Pagination() Pagination {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.queryCtx == nil {
		return PaginateNone
	}
	earlier := r.queryCtx.CanQueryEarlier()
	later := r.queryCtx.CanQueryLater()
	switch {
	case earlier && later:
		return PaginateBoth
	case earlier:
		return PaginateEarlier
	case later:
		return PaginateLater
	}
	return PaginateNone
}

// Starts a new search, superseding any search in flight. The result
// set is reset; outcomes arrive via Updates and QueryErrors.
func (r *Repository) Search(ctx context.Context, query TripQuery) {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	sctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.trips = nil
	r.seen = map[string]bool{}
	r.queryCtx = nil
	r.mu.Unlock()

	r.publish(SearchState{Loading: true})

	go func() {
		res, err := r.provider.QueryTrips(sctx, query)
		r.handleResult(sctx, res, err, query, false)
	}()
}

// Extends the current search backward or forward in time. Requires a
// pagination context from a completed search supporting the
// direction; refuses with ErrNoOngoingSearch or
// ErrPaginationUnsupported otherwise.
func (r *Repository) SearchMore(ctx context.Context, later bool) error {
	r.mu.Lock()
	qc := r.queryCtx
	if qc == nil {
		r.mu.Unlock()
		return ErrNoOngoingSearch
	}
	if later && !qc.CanQueryLater() || !later && !qc.CanQueryEarlier() {
		r.mu.Unlock()
		return ErrPaginationUnsupported
	}
	if r.cancel != nil {
		r.cancel()
	}
	sctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	r.publish(SearchState{Loading: true, Trips: r.snapshot()})

	go func() {
		res, err := r.provider.QueryMoreTrips(sctx, qc, later)
		r.handleResult(sctx, res, err, TripQuery{}, true)
	}()
	return nil
}

func (r *Repository) handleResult(ctx context.Context, res *TripsResult, err error, query TripQuery, more bool) {
	errCh := r.queryErrs
	if more {
		errCh = r.moreErrs
	}

	// A newer search may have superseded this one while the
	// provider was working; its result must not land.
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		// A superseded search is not a failure.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		r.publishErr(errCh, err)
		r.publish(SearchState{Trips: r.snapshot()})
		return
	}

	if res.Status != StatusOK || len(res.Trips) == 0 {
		status := res.Status
		if status == StatusOK {
			status = StatusNoTrips
		}
		r.publishErr(errCh, &ProviderError{Status: status})
		r.publish(SearchState{Trips: r.snapshot()})
		return
	}

	merged, ok := r.mergeResult(ctx, res)
	if !ok {
		return
	}

	// Publish before touching storage; observers should not wait
	// for writes.
	r.publish(SearchState{Trips: merged})

	if !more {
		r.recordSearch(ctx, query)
	}
	r.persistTrips(ctx, res.Trips)
}

// Merges a result into the current trip set and returns a snapshot of
// it. The context is re-checked under the lock: Search cancels and
// resets under the same mutex, so a search superseded after the entry
// check in handleResult cannot slip its trips or pagination context
// into its successor's result set.
func (r *Repository) mergeResult(ctx context.Context, res *TripsResult) ([]*model.Trip, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil {
		return nil, false
	}

	for _, trip := range res.Trips {
		key := trip.DedupKey()
		if r.seen[key] {
			continue
		}
		r.seen[key] = true
		r.trips = append(r.trips, trip)
	}
	r.queryCtx = res.Context
	merged := make([]*model.Trip, len(r.trips))
	copy(merged, r.trips)
	return merged, true
}

// Remembers the query endpoints as favorites and the query itself in
// the history. Failures are logged, never surfaced: bookkeeping must
// not break a successful search.
func (r *Repository) recordSearch(ctx context.Context, query TripQuery) {
	if ctx.Err() != nil {
		return
	}

	fromFav, err := r.resolveFavorite(query.From, storage.RoleFrom)
	if err != nil {
		r.Logger.Printf("saving favorite: %v", err)
	}
	var viaFav *storage.FavoriteLocation
	if query.Via != nil {
		viaFav, err = r.resolveFavorite(*query.Via, storage.RoleVia)
		if err != nil {
			r.Logger.Printf("saving favorite: %v", err)
		}
	}
	toFav, err := r.resolveFavorite(query.To, storage.RoleTo)
	if err != nil {
		r.Logger.Printf("saving favorite: %v", err)
	}

	if fromFav == nil || toFav == nil {
		return
	}

	now := time.Now()
	search := storage.Search{
		UID:          uuid.NewString(),
		Network:      r.network,
		FromFavorite: fromFav.ID,
		ToFavorite:   toFav.ID,
		CreatedAt:    now,
		LastUsed:     now,
	}
	if viaFav != nil {
		search.ViaFavorite = viaFav.ID
	}
	if err := r.store.WriteSearch(search); err != nil {
		r.Logger.Printf("recording search: %v", err)
	}
}

// Writes the fetched trips into the cache. The search's context is
// checked between writes so a superseded search stops persisting
// instead of racing the search that replaced it.
func (r *Repository) persistTrips(ctx context.Context, trips []*model.Trip) {
	for _, trip := range trips {
		if ctx.Err() != nil {
			return
		}
		if err := r.store.WriteTrip(r.network, trip); err != nil {
			r.Logger.Printf("caching trip %s: %v", trip.ID, err)
		}
	}
}

// Locations eligible to be remembered: anything but bare coordinates
// and untyped placeholders.
func favorable(loc model.Location) bool {
	switch loc.Type {
	case model.LocationTypeStation, model.LocationTypePOI, model.LocationTypeAddress:
		return true
	}
	return false
}

// Coordinates truncated to three decimals land in ~100 m buckets;
// good enough to absorb geocoder drift between queries for the same
// address without conflating distinct nearby addresses, since the
// name must match exactly too.
func sameCoordBucket(a, b model.Location) bool {
	return a.Lat/1000 == b.Lat/1000 && a.Lon/1000 == b.Lon/1000
}

// Maps a query endpoint to a favorite row, creating one if needed,
// and bumps its usage counter for the role. Returns nil for
// locations that are never saved.
func (r *Repository) resolveFavorite(loc model.Location, role storage.FavoriteRole) (*storage.FavoriteLocation, error) {
	if !favorable(loc) {
		return nil, nil
	}

	var match *storage.FavoriteLocation

	// Networks return slightly different coordinates for the same
	// address across queries. Match addresses by exact name plus
	// coordinate bucket before falling back to exact fields.
	if loc.Type == model.LocationTypeAddress && loc.HasCoord() && loc.Name != "" {
		favorites, err := r.store.ListFavorites(r.network)
		if err != nil {
			return nil, err
		}
		for _, fav := range favorites {
			if fav.Location.Type != model.LocationTypeAddress {
				continue
			}
			if fav.Location.Name != loc.Name {
				continue
			}
			if !sameCoordBucket(fav.Location, loc) {
				continue
			}
			match = fav
			break
		}
	}

	if match == nil {
		fav, err := r.store.FindFavorite(r.network, loc)
		if err != nil {
			return nil, err
		}
		match = fav
	}

	if match == nil {
		fav, err := r.store.InsertFavorite(r.network, loc)
		if err != nil {
			return nil, err
		}
		match = fav
	}

	if err := r.store.BumpFavorite(match.ID, role); err != nil {
		return nil, err
	}
	switch role {
	case storage.RoleFrom:
		match.FromCount++
	case storage.RoleVia:
		match.ViaCount++
	case storage.RoleTo:
		match.ToCount++
	}
	return match, nil
}

// Favorite locations for this repository's network, most used first.
func (r *Repository) Favorites() ([]*storage.FavoriteLocation, error) {
	return r.store.ListFavorites(r.network)
}

// Past searches, most recently used first.
func (r *Repository) History() ([]storage.Search, error) {
	return r.store.ListSearches(r.network)
}

// Cached trips, oldest departure first.
func (r *Repository) CachedTrips() ([]*model.Trip, error) {
	return r.store.ListTrips(r.network)
}

// Departure board for a station, straight from the provider.
func (r *Repository) Departures(ctx context.Context, stationID string, when time.Time, limit int) ([]Departure, error) {
	return r.provider.QueryDepartures(ctx, stationID, when, limit)
}

func (r *Repository) snapshot() []*model.Trip {
	r.mu.Lock()
	defer r.mu.Unlock()
	trips := make([]*model.Trip, len(r.trips))
	copy(trips, r.trips)
	return trips
}

func (r *Repository) publish(state SearchState) {
	sendLatest(r.updates, state)
}

func (r *Repository) publishErr(ch chan error, err error) {
	sendLatest(ch, err)
}

// Non-blocking send, dropping the oldest buffered value when full.
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
