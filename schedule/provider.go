package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/voyagekit/transit"
	"github.com/voyagekit/transit/model"
	"github.com/voyagekit/transit/storage"
)

const (
	DefaultWindow      = 2 * time.Hour
	DefaultMinTransfer = 3 * time.Minute
	DefaultMaxTrips    = 6
)

// Timetable answers trip queries from a daily-repeating schedule
// loaded from CSV files. It implements transit.Provider.
type Timetable struct {
	Window      time.Duration
	MinTransfer time.Duration
	MaxTrips    int

	network   string
	stations  map[string]model.Location
	lines     map[string]model.Line
	runs      []*run
	byStation map[string][]stopRef
}

// Loads the timetable for a network from dir.
func Load(network, dir string) (*Timetable, error) {
	stations, err := loadStations(dir, network)
	if err != nil {
		return nil, fmt.Errorf("loading stations: %w", err)
	}
	lines, err := loadLines(dir, network)
	if err != nil {
		return nil, fmt.Errorf("loading lines: %w", err)
	}
	runs, err := loadRuns(dir, stations, lines)
	if err != nil {
		return nil, fmt.Errorf("loading runs: %w", err)
	}

	byStation := map[string][]stopRef{}
	for ri, r := range runs {
		for si, stop := range r.stops {
			byStation[stop.station] = append(byStation[stop.station], stopRef{run: ri, stop: si})
		}
	}

	return &Timetable{
		Window:      DefaultWindow,
		MinTransfer: DefaultMinTransfer,
		MaxTrips:    DefaultMaxTrips,

		network:   network,
		stations:  stations,
		lines:     lines,
		runs:      runs,
		byStation: byStation,
	}, nil
}

// Pagination context: the search window the trips came from. Shifting
// it is always possible in both directions, the schedule repeats.
type windowContext struct {
	from     model.Location
	via      *model.Location
	to       model.Location
	products model.ProductSet
	start    time.Time
	end      time.Time
}

func (c *windowContext) CanQueryEarlier() bool { return true }
func (c *windowContext) CanQueryLater() bool   { return true }

func (t *Timetable) QueryTrips(ctx context.Context, query transit.TripQuery) (*transit.TripsResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if query.When.IsZero() {
		return &transit.TripsResult{Status: transit.StatusInvalidDate}, nil
	}

	from, status, candidates := t.resolve(query.From)
	if status != transit.StatusOK {
		return &transit.TripsResult{
			Status:        mapEndpointStatus(status, transit.StatusUnknownFrom),
			AmbiguousFrom: candidates,
		}, nil
	}
	var via *model.Location
	if query.Via != nil {
		v, status, candidates := t.resolve(*query.Via)
		if status != transit.StatusOK {
			return &transit.TripsResult{
				Status:       mapEndpointStatus(status, transit.StatusUnknownVia),
				AmbiguousVia: candidates,
			}, nil
		}
		via = &v
	}
	to, status, candidates := t.resolve(query.To)
	if status != transit.StatusOK {
		return &transit.TripsResult{
			Status:      mapEndpointStatus(status, transit.StatusUnknownTo),
			AmbiguousTo: candidates,
		}, nil
	}

	if from.ID == to.ID {
		return &transit.TripsResult{Status: transit.StatusTooClose}, nil
	}

	start := query.When
	end := query.When.Add(t.Window)
	if query.ArriveBy {
		start = query.When.Add(-t.Window)
		end = query.When
	}

	wc := &windowContext{
		from:     from,
		via:      via,
		to:       to,
		products: query.Products,
		start:    start,
		end:      end,
	}
	return t.queryWindow(wc)
}

func (t *Timetable) QueryMoreTrips(ctx context.Context, qc transit.QueryContext, later bool) (*transit.TripsResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wc, ok := qc.(*windowContext)
	if !ok {
		return nil, fmt.Errorf("foreign query context %T", qc)
	}

	shifted := &windowContext{
		from:     wc.from,
		via:      wc.via,
		to:       wc.to,
		products: wc.products,
	}
	window := wc.end.Sub(wc.start)
	if later {
		shifted.start = wc.end
		shifted.end = wc.end.Add(window)
	} else {
		shifted.start = wc.start.Add(-window)
		shifted.end = wc.start
	}
	return t.queryWindow(shifted)
}

func (t *Timetable) queryWindow(wc *windowContext) (*transit.TripsResult, error) {
	var trips []*model.Trip
	if wc.via != nil {
		trips = t.planVia(wc.from, *wc.via, wc.to, wc.start, wc.end, wc.products)
	} else {
		trips = t.planDirect(wc.from, wc.to, wc.start, wc.end, wc.products)
		if len(trips) == 0 {
			trips = t.planTransfer(wc.from, wc.to, wc.start, wc.end, wc.products)
		}
	}

	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].FirstDepartureTime().Before(trips[j].FirstDepartureTime())
	})
	if len(trips) > t.MaxTrips {
		trips = trips[:t.MaxTrips]
	}

	return &transit.TripsResult{
		Status:  transit.StatusOK,
		From:    wc.from,
		Via:     wc.via,
		To:      wc.to,
		Trips:   trips,
		Context: wc,
	}, nil
}

func mapEndpointStatus(status, unknown transit.QueryStatus) transit.QueryStatus {
	if status == transit.StatusUnknownLocation {
		return unknown
	}
	return status
}

// Maps a query endpoint to a station. Returns StatusUnknownLocation,
// StatusAmbiguous (with candidates) or StatusUnresolvableAddress on
// failure; the caller rewrites the status for its role.
func (t *Timetable) resolve(loc model.Location) (model.Location, transit.QueryStatus, []model.Location) {
	if loc.HasID() {
		if station, ok := t.stations[loc.ID]; ok {
			return station, transit.StatusOK, nil
		}
		return model.Location{}, transit.StatusUnknownLocation, nil
	}

	if loc.Type == model.LocationTypeCoord {
		// Snap a bare coordinate to the closest station, within
		// reason.
		nearest := t.nearby(loc.Coord(), 1)
		if len(nearest) == 0 {
			return model.Location{}, transit.StatusUnresolvableAddress, nil
		}
		station := nearest[0]
		d := storage.HaversineDistance(
			loc.LatDegrees(), loc.LonDegrees(),
			station.LatDegrees(), station.LonDegrees())
		if d > 2.0 {
			return model.Location{}, transit.StatusUnresolvableAddress, nil
		}
		return station, transit.StatusOK, nil
	}

	if loc.Name == "" {
		return model.Location{}, transit.StatusUnknownLocation, nil
	}

	exact := []model.Location{}
	prefixed := []model.Location{}
	for _, station := range t.stations {
		if strings.EqualFold(station.Name, loc.Name) {
			exact = append(exact, station)
		} else if strings.HasPrefix(strings.ToLower(station.Name), strings.ToLower(loc.Name)) {
			prefixed = append(prefixed, station)
		}
	}

	if len(exact) == 1 {
		return exact[0], transit.StatusOK, nil
	}
	if len(exact) > 1 {
		return model.Location{}, transit.StatusAmbiguous, exact
	}
	if len(prefixed) == 1 {
		return prefixed[0], transit.StatusOK, nil
	}
	if len(prefixed) > 1 {
		sort.Slice(prefixed, func(i, j int) bool {
			return prefixed[i].Name < prefixed[j].Name
		})
		return model.Location{}, transit.StatusAmbiguous, prefixed
	}
	return model.Location{}, transit.StatusUnknownLocation, nil
}

// Materializes a run stop's clock time on a calendar day.
func at(day time.Time, minutes int) time.Time {
	return day.Add(time.Duration(minutes) * time.Minute)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (t *Timetable) wantProduct(products model.ProductSet, line model.Line) bool {
	return products == 0 || products.Contains(line.Product)
}

// Index of the first boardable stop for station, or -1.
func (r *run) boardAt(station string) int {
	for i, stop := range r.stops {
		if stop.station == station && stop.departure >= 0 {
			return i
		}
	}
	return -1
}

// Index of an alightable stop for station after from, or -1.
func (r *run) alightAfter(station string, from int) int {
	for i := from + 1; i < len(r.stops); i++ {
		if r.stops[i].station == station && r.stops[i].arrival >= 0 {
			return i
		}
	}
	return -1
}

// Builds the public leg riding r from stop index i to j on the given
// day.
func (t *Timetable) leg(r *run, i, j int, day time.Time) *model.PublicLeg {
	dep := at(day, r.stops[i].departure)
	arr := at(day, r.stops[j].arrival)

	leg := &model.PublicLeg{
		Line: r.line,
		Departure: model.Stop{
			Location:         t.stations[r.stops[i].station],
			PlannedDeparture: &dep,
		},
		Arrival: model.Stop{
			Location:       t.stations[r.stops[j].station],
			PlannedArrival: &arr,
		},
	}

	dest := t.stations[r.stops[len(r.stops)-1].station]
	leg.Destination = &dest

	for k := i + 1; k < j; k++ {
		stop := model.Stop{Location: t.stations[r.stops[k].station]}
		if r.stops[k].arrival >= 0 {
			a := at(day, r.stops[k].arrival)
			stop.PlannedArrival = &a
		}
		if r.stops[k].departure >= 0 {
			d := at(day, r.stops[k].departure)
			stop.PlannedDeparture = &d
		}
		leg.Intermediate = append(leg.Intermediate, stop)
	}

	return leg
}

// The calendar days whose runs can fall into [start, end]: runs are
// daily, and clock times may run past midnight.
func searchDays(start, end time.Time) []time.Time {
	days := []time.Time{}
	for day := midnight(start).AddDate(0, 0, -1); day.Before(end); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

func (t *Timetable) planDirect(from, to model.Location, start, end time.Time, products model.ProductSet) []*model.Trip {
	trips := []*model.Trip{}
	for _, day := range searchDays(start, end) {
		for _, r := range t.runs {
			if !t.wantProduct(products, r.line) {
				continue
			}
			i := r.boardAt(from.ID)
			if i < 0 {
				continue
			}
			j := r.alightAfter(to.ID, i)
			if j < 0 {
				continue
			}
			dep := at(day, r.stops[i].departure)
			arr := at(day, r.stops[j].arrival)
			if dep.Before(start) || dep.After(end) || arr.After(end) {
				continue
			}
			leg := t.leg(r, i, j, day)
			trips = append(trips, model.NewTrip("", from, to, []model.Leg{leg}))
		}
	}
	return trips
}

func (t *Timetable) planTransfer(from, to model.Location, start, end time.Time, products model.ProductSet) []*model.Trip {
	trips := []*model.Trip{}
	for _, day := range searchDays(start, end) {
		for _, r := range t.runs {
			if !t.wantProduct(products, r.line) {
				continue
			}
			i := r.boardAt(from.ID)
			if i < 0 {
				continue
			}
			dep := at(day, r.stops[i].departure)
			if dep.Before(start) || dep.After(end) {
				continue
			}

			for j := i + 1; j < len(r.stops); j++ {
				if r.stops[j].arrival < 0 || r.stops[j].station == to.ID {
					continue
				}
				first := t.leg(r, i, j, day)
				second := t.connection(r.stops[j].station, to.ID, first.ArrivalTime().Add(t.MinTransfer), end, day, products, r)
				if second == nil {
					continue
				}
				trips = append(trips, model.NewTrip("", from, to,
					[]model.Leg{first, second}))
			}
		}
	}
	return trips
}

// The earliest onward leg from a transfer station to dest departing
// in [earliest, end], excluding the run just ridden.
func (t *Timetable) connection(station, dest string, earliest, end, day time.Time, products model.ProductSet, exclude *run) *model.PublicLeg {
	var best *model.PublicLeg
	for _, ref := range t.byStation[station] {
		r := t.runs[ref.run]
		if r == exclude || !t.wantProduct(products, r.line) {
			continue
		}
		i := ref.stop
		if r.stops[i].station != station || r.stops[i].departure < 0 {
			continue
		}
		j := r.alightAfter(dest, i)
		if j < 0 {
			continue
		}
		dep := at(day, r.stops[i].departure)
		arr := at(day, r.stops[j].arrival)
		if dep.Before(earliest) || arr.After(end) {
			continue
		}
		if best == nil || dep.Before(best.DepartureTime()) {
			best = t.leg(r, i, j, day)
		}
	}
	return best
}

func (t *Timetable) planVia(from, via, to model.Location, start, end time.Time, products model.ProductSet) []*model.Trip {
	trips := []*model.Trip{}
	firsts := t.planDirect(from, via, start, end, products)
	for _, head := range firsts {
		headLeg := head.Legs[0].(*model.PublicLeg)
		tails := t.planDirect(via, to, headLeg.ArrivalTime().Add(t.MinTransfer), end, products)
		if len(tails) == 0 {
			continue
		}
		sort.SliceStable(tails, func(i, j int) bool {
			return tails[i].FirstDepartureTime().Before(tails[j].FirstDepartureTime())
		})
		tailLeg := tails[0].Legs[0].(*model.PublicLeg)
		trips = append(trips, model.NewTrip("", from, to,
			[]model.Leg{headLeg, tailLeg}))
	}
	return trips
}

func (t *Timetable) QueryDepartures(ctx context.Context, stationID string, when time.Time, limit int) ([]transit.Departure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := t.stations[stationID]; !ok {
		return nil, fmt.Errorf("unknown station %q", stationID)
	}

	departures := []transit.Departure{}
	for _, day := range searchDays(when, when.Add(24*time.Hour)) {
		for _, ref := range t.byStation[stationID] {
			r := t.runs[ref.run]
			stop := r.stops[ref.stop]
			if stop.departure < 0 {
				continue
			}
			dep := at(day, stop.departure)
			if dep.Before(when) {
				continue
			}

			s := model.Stop{
				Location:         t.stations[stationID],
				PlannedDeparture: &dep,
			}
			if stop.arrival >= 0 {
				a := at(day, stop.arrival)
				s.PlannedArrival = &a
			}
			dest := t.stations[r.stops[len(r.stops)-1].station]
			departures = append(departures, transit.Departure{
				Line:        r.line,
				Stop:        s,
				Destination: &dest,
			})
		}
	}

	sort.SliceStable(departures, func(i, j int) bool {
		return departures[i].Stop.PlannedDeparture.Before(*departures[j].Stop.PlannedDeparture)
	})
	if limit > 0 && len(departures) > limit {
		departures = departures[:limit]
	}
	return departures, nil
}

func (t *Timetable) SuggestLocations(ctx context.Context, constraint string, limit int) ([]model.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	needle := strings.ToLower(constraint)
	type scored struct {
		loc   model.Location
		score int
	}
	matches := []scored{}
	for _, station := range t.stations {
		name := strings.ToLower(station.Name)
		switch {
		case name == needle:
			matches = append(matches, scored{station, 0})
		case strings.HasPrefix(name, needle):
			matches = append(matches, scored{station, 1})
		case strings.Contains(name, needle):
			matches = append(matches, scored{station, 2})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score < matches[j].score
		}
		return matches[i].loc.Name < matches[j].loc.Name
	})

	locations := []model.Location{}
	for _, m := range matches {
		locations = append(locations, m.loc)
		if limit > 0 && len(locations) == limit {
			break
		}
	}
	return locations, nil
}

func (t *Timetable) QueryNearbyLocations(ctx context.Context, point model.Point, limit int) ([]model.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.nearby(point, limit), nil
}

func (t *Timetable) nearby(point model.Point, limit int) []model.Location {
	stations := make([]model.Location, 0, len(t.stations))
	for _, station := range t.stations {
		stations = append(stations, station)
	}
	sort.Slice(stations, func(i, j int) bool {
		di := storage.HaversineDistance(
			point.LatDegrees(), point.LonDegrees(),
			stations[i].LatDegrees(), stations[i].LonDegrees())
		dj := storage.HaversineDistance(
			point.LatDegrees(), point.LonDegrees(),
			stations[j].LatDegrees(), stations[j].LonDegrees())
		return di < dj
	})
	if limit > 0 && len(stations) > limit {
		stations = stations[:limit]
	}
	return stations
}
