package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/voyagekit/transit/model"
)

type SQLiteConfig struct {
	OnDisk bool
	Path   string
}

type SQLiteStorage struct {
	SQLiteConfig

	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS locations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    network TEXT NOT NULL,
    ext_id TEXT,
    loc_type INTEGER NOT NULL,
    lat INTEGER NOT NULL DEFAULT 0,
    lon INTEGER NOT NULL DEFAULT 0,
    place TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    products INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS locations_ext_id
    ON locations (network, ext_id) WHERE ext_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS stops (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    location_id INTEGER NOT NULL REFERENCES locations (id),
    planned_arrival TIMESTAMP,
    predicted_arrival TIMESTAMP,
    planned_departure TIMESTAMP,
    predicted_departure TIMESTAMP,
    planned_arrival_position TEXT NOT NULL DEFAULT '',
    predicted_arrival_position TEXT NOT NULL DEFAULT '',
    planned_departure_position TEXT NOT NULL DEFAULT '',
    predicted_departure_position TEXT NOT NULL DEFAULT '',
    arrival_cancelled INTEGER NOT NULL DEFAULT 0,
    departure_cancelled INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS lines (
    id TEXT PRIMARY KEY,
    network TEXT NOT NULL,
    product INTEGER NOT NULL,
    label TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    bg_color INTEGER,
    fg_color INTEGER,
    border_color INTEGER,
    attrs INTEGER NOT NULL DEFAULT 0,
    message TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS trips (
    network TEXT NOT NULL,
    id TEXT NOT NULL,
    from_location INTEGER NOT NULL REFERENCES locations (id),
    to_location INTEGER NOT NULL REFERENCES locations (id),
    capacity TEXT NOT NULL DEFAULT '',
    num_changes INTEGER,
    first_departure TIMESTAMP NOT NULL,
    last_arrival TIMESTAMP NOT NULL,
    PRIMARY KEY (network, id)
);

CREATE TABLE IF NOT EXISTS trip_legs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    network TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    kind INTEGER NOT NULL,
    line_id TEXT REFERENCES lines (id),
    destination_id INTEGER REFERENCES locations (id),
    departure_stop INTEGER REFERENCES stops (id),
    arrival_stop INTEGER REFERENCES stops (id),
    departure_location INTEGER REFERENCES locations (id),
    arrival_location INTEGER REFERENCES locations (id),
    departure_time TIMESTAMP,
    arrival_time TIMESTAMP,
    distance INTEGER NOT NULL DEFAULT 0,
    path TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS trip_legs_trip ON trip_legs (network, trip_id, position);

CREATE TABLE IF NOT EXISTS trip_leg_stops (
    leg_id INTEGER NOT NULL REFERENCES trip_legs (id),
    position INTEGER NOT NULL,
    stop_id INTEGER NOT NULL REFERENCES stops (id),
PRIMARY KEY (leg_id, position)
);

CREATE TABLE IF NOT EXISTS favorites (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    network TEXT NOT NULL,
    loc_type INTEGER NOT NULL,
    ext_id TEXT NOT NULL DEFAULT '',
    lat INTEGER NOT NULL DEFAULT 0,
    lon INTEGER NOT NULL DEFAULT 0,
    place TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    products INTEGER NOT NULL DEFAULT 0,
    from_count INTEGER NOT NULL DEFAULT 0,
    via_count INTEGER NOT NULL DEFAULT 0,
    to_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS favorites_network ON favorites (network);

CREATE TABLE IF NOT EXISTS searches (
    uid TEXT PRIMARY KEY,
    network TEXT NOT NULL,
    from_favorite INTEGER NOT NULL REFERENCES favorites (id),
    via_favorite INTEGER NOT NULL DEFAULT 0,
    to_favorite INTEGER NOT NULL REFERENCES favorites (id),
    created_at TIMESTAMP NOT NULL,
    last_used TIMESTAMP NOT NULL,
    pinned INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS searches_endpoints
    ON searches (network, from_favorite, via_favorite, to_favorite);
`

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	path := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		path = cfg[0].Path
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = path
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{OnDisk: onDisk, Path: path},
		db:           db,
	}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Resolves a location to its row id, inserting if absent. Locations
// with an external id are deduplicated on (network, ext_id) alone;
// all others on the full field tuple.
func (s *SQLiteStorage) upsertLocation(tx *sql.Tx, network string, loc model.Location) (int64, error) {
	var id int64
	var err error
	if loc.HasID() {
		err = tx.QueryRow(`
SELECT id FROM locations WHERE network = ? AND ext_id = ?`,
			network, loc.ID).Scan(&id)
	} else {
		err = tx.QueryRow(`
SELECT id FROM locations
WHERE network = ? AND ext_id IS NULL AND loc_type = ?
    AND lat = ? AND lon = ? AND place = ? AND name = ?`,
			network, int(loc.Type), loc.Lat, loc.Lon, loc.Place, loc.Name).Scan(&id)
	}
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("looking up location: %w", err)
	}

	extID := sql.NullString{String: loc.ID, Valid: loc.HasID()}
	res, err := tx.Exec(`
INSERT INTO locations (network, ext_id, loc_type, lat, lon, place, name, products)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		network, extID, int(loc.Type), loc.Lat, loc.Lon, loc.Place, loc.Name, int(loc.Products))
	if err != nil {
		return 0, fmt.Errorf("inserting location: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStorage) insertStop(tx *sql.Tx, network string, stop model.Stop) (int64, error) {
	locID, err := s.upsertLocation(tx, network, stop.Location)
	if err != nil {
		return 0, err
	}

	res, err := tx.Exec(`
INSERT INTO stops (
    location_id,
    planned_arrival, predicted_arrival,
    planned_departure, predicted_departure,
    planned_arrival_position, predicted_arrival_position,
    planned_departure_position, predicted_departure_position,
    arrival_cancelled, departure_cancelled
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		locID,
		nullTime(stop.PlannedArrival), nullTime(stop.PredictedArrival),
		nullTime(stop.PlannedDeparture), nullTime(stop.PredictedDeparture),
		stop.PlannedArrivalPosition, stop.PredictedArrivalPosition,
		stop.PlannedDeparturePosition, stop.PredictedDeparturePosition,
		stop.ArrivalCancelled, stop.DepartureCancelled)
	if err != nil {
		return 0, fmt.Errorf("inserting stop: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStorage) upsertLine(tx *sql.Tx, line model.Line) error {
	var bg, fg, border sql.NullInt64
	if line.Style != nil {
		bg = sql.NullInt64{Int64: int64(line.Style.BackgroundColor), Valid: true}
		fg = sql.NullInt64{Int64: int64(line.Style.ForegroundColor), Valid: true}
		border = sql.NullInt64{Int64: int64(line.Style.BorderColor), Valid: true}
	}
	_, err := tx.Exec(`
INSERT INTO lines (id, network, product, label, name, bg_color, fg_color, border_color, attrs, message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`,
		line.ID, line.Network, int(line.Product), line.Label, line.Name,
		bg, fg, border, int(line.Attrs), line.Message)
	if err != nil {
		return fmt.Errorf("inserting line: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) WriteTrip(network string, trip *model.Trip) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	err = s.writeTripTx(tx, network, trip)
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) writeTripTx(tx *sql.Tx, network string, trip *model.Trip) error {
	fromID, err := s.upsertLocation(tx, network, trip.From)
	if err != nil {
		return err
	}
	toID, err := s.upsertLocation(tx, network, trip.To)
	if err != nil {
		return err
	}

	// Rewriting an existing trip replaces its legs. Stops orphaned
	// by the replacement are left for the next sweep.
	_, err = tx.Exec(`
DELETE FROM trip_leg_stops WHERE leg_id IN (
    SELECT id FROM trip_legs WHERE network = ? AND trip_id = ?)`,
		network, trip.ID)
	if err != nil {
		return fmt.Errorf("clearing leg stops: %w", err)
	}
	_, err = tx.Exec(`DELETE FROM trip_legs WHERE network = ? AND trip_id = ?`, network, trip.ID)
	if err != nil {
		return fmt.Errorf("clearing legs: %w", err)
	}

	var numChanges sql.NullInt64
	if trip.NumChanges != nil {
		numChanges = sql.NullInt64{Int64: int64(*trip.NumChanges), Valid: true}
	}
	_, err = tx.Exec(`
INSERT INTO trips (network, id, from_location, to_location, capacity, num_changes, first_departure, last_arrival)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (network, id) DO UPDATE SET
    from_location = excluded.from_location,
    to_location = excluded.to_location,
    capacity = excluded.capacity,
    num_changes = excluded.num_changes,
    first_departure = excluded.first_departure,
    last_arrival = excluded.last_arrival`,
		network, trip.ID, fromID, toID,
		encodeCapacity(trip.Capacity), numChanges,
		trip.FirstDepartureTime().UTC(), trip.LastArrivalTime().UTC())
	if err != nil {
		return fmt.Errorf("inserting trip: %w", err)
	}

	for i, leg := range trip.Legs {
		switch l := leg.(type) {
		case *model.PublicLeg:
			err = s.writePublicLeg(tx, network, trip.ID, i, l)
		case *model.IndividualLeg:
			err = s.writeIndividualLeg(tx, network, trip.ID, i, l)
		default:
			err = fmt.Errorf("unknown leg type %T", leg)
		}
		if err != nil {
			return fmt.Errorf("writing leg %d: %w", i, err)
		}
	}

	return nil
}

func (s *SQLiteStorage) writePublicLeg(tx *sql.Tx, network, tripID string, position int, leg *model.PublicLeg) error {
	if err := s.upsertLine(tx, leg.Line); err != nil {
		return err
	}

	depID, err := s.insertStop(tx, network, leg.Departure)
	if err != nil {
		return err
	}
	arrID, err := s.insertStop(tx, network, leg.Arrival)
	if err != nil {
		return err
	}

	var destID sql.NullInt64
	if leg.Destination != nil {
		id, err := s.upsertLocation(tx, network, *leg.Destination)
		if err != nil {
			return err
		}
		destID = sql.NullInt64{Int64: id, Valid: true}
	}

	res, err := tx.Exec(`
INSERT INTO trip_legs (network, trip_id, position, kind, line_id, destination_id, departure_stop, arrival_stop, path, message)
VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`,
		network, tripID, position, leg.Line.ID, destID, depID, arrID,
		EncodePath(leg.PathCoords), leg.Message)
	if err != nil {
		return fmt.Errorf("inserting leg: %w", err)
	}
	legID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting leg id: %w", err)
	}

	for j, stop := range leg.Intermediate {
		stopID, err := s.insertStop(tx, network, stop)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
INSERT INTO trip_leg_stops (leg_id, position, stop_id) VALUES (?, ?, ?)`,
			legID, j, stopID)
		if err != nil {
			return fmt.Errorf("inserting leg stop: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStorage) writeIndividualLeg(tx *sql.Tx, network, tripID string, position int, leg *model.IndividualLeg) error {
	depID, err := s.upsertLocation(tx, network, leg.Departure)
	if err != nil {
		return err
	}
	arrID, err := s.upsertLocation(tx, network, leg.Arrival)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
INSERT INTO trip_legs (network, trip_id, position, kind, departure_location, arrival_location, departure_time, arrival_time, distance, path)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		network, tripID, position, 1+int(leg.Mode), depID, arrID,
		leg.DepartureAt.UTC(), leg.ArrivalAt.UTC(), leg.Distance,
		EncodePath(leg.PathCoords))
	if err != nil {
		return fmt.Errorf("inserting leg: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) loadLocation(id int64) (model.Location, error) {
	var loc model.Location
	var extID sql.NullString
	var locType, products int
	err := s.db.QueryRow(`
SELECT ext_id, loc_type, lat, lon, place, name, products
FROM locations WHERE id = ?`, id).Scan(
		&extID, &locType, &loc.Lat, &loc.Lon, &loc.Place, &loc.Name, &products)
	if err != nil {
		return loc, fmt.Errorf("loading location %d: %w", id, err)
	}
	loc.ID = extID.String
	loc.Type = model.LocationType(locType)
	loc.Products = model.ProductSet(products)
	return loc, nil
}

func (s *SQLiteStorage) loadStop(id int64) (model.Stop, error) {
	var stop model.Stop
	var locID int64
	var pa, ra, pd, rd sql.NullTime
	err := s.db.QueryRow(`
SELECT location_id,
    planned_arrival, predicted_arrival, planned_departure, predicted_departure,
    planned_arrival_position, predicted_arrival_position,
    planned_departure_position, predicted_departure_position,
    arrival_cancelled, departure_cancelled
FROM stops WHERE id = ?`, id).Scan(
		&locID, &pa, &ra, &pd, &rd,
		&stop.PlannedArrivalPosition, &stop.PredictedArrivalPosition,
		&stop.PlannedDeparturePosition, &stop.PredictedDeparturePosition,
		&stop.ArrivalCancelled, &stop.DepartureCancelled)
	if err != nil {
		return stop, fmt.Errorf("loading stop %d: %w", id, err)
	}

	stop.PlannedArrival = timePtr(pa)
	stop.PredictedArrival = timePtr(ra)
	stop.PlannedDeparture = timePtr(pd)
	stop.PredictedDeparture = timePtr(rd)

	stop.Location, err = s.loadLocation(locID)
	if err != nil {
		return stop, err
	}
	return stop, nil
}

func (s *SQLiteStorage) loadLine(id string) (model.Line, error) {
	var line model.Line
	var product, attrs int
	var bg, fg, border sql.NullInt64
	err := s.db.QueryRow(`
SELECT id, network, product, label, name, bg_color, fg_color, border_color, attrs, message
FROM lines WHERE id = ?`, id).Scan(
		&line.ID, &line.Network, &product, &line.Label, &line.Name,
		&bg, &fg, &border, &attrs, &line.Message)
	if err != nil {
		return line, fmt.Errorf("loading line %s: %w", id, err)
	}
	line.Product = model.Product(product)
	line.Attrs = model.LineAttr(attrs)
	if bg.Valid {
		line.Style = &model.Style{
			BackgroundColor: int(bg.Int64),
			ForegroundColor: int(fg.Int64),
			BorderColor:     int(border.Int64),
		}
	}
	return line, nil
}

// Raw leg row, resolved into a model.Leg after the row set is
// drained.
type legRow struct {
	id       int64
	kind     int
	lineID   sql.NullString
	destID   sql.NullInt64
	depStop  sql.NullInt64
	arrStop  sql.NullInt64
	depLoc   sql.NullInt64
	arrLoc   sql.NullInt64
	depTime  sql.NullTime
	arrTime  sql.NullTime
	distance int
	path     string
	message  string
}

func (s *SQLiteStorage) GetTrip(network string, id string) (*model.Trip, error) {
	var fromID, toID int64
	var capacity string
	var numChanges sql.NullInt64
	err := s.db.QueryRow(`
SELECT from_location, to_location, capacity, num_changes
FROM trips WHERE network = ? AND id = ?`, network, id).Scan(
		&fromID, &toID, &capacity, &numChanges)
	if err == sql.ErrNoRows {
		return nil, ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading trip: %w", err)
	}

	rows, err := s.db.Query(`
SELECT id, kind, line_id, destination_id, departure_stop, arrival_stop,
    departure_location, arrival_location, departure_time, arrival_time,
    distance, path, message
FROM trip_legs
WHERE network = ? AND trip_id = ?
ORDER BY position`, network, id)
	if err != nil {
		return nil, fmt.Errorf("loading legs: %w", err)
	}
	defer rows.Close()

	legRows := []legRow{}
	for rows.Next() {
		var lr legRow
		err := rows.Scan(
			&lr.id, &lr.kind, &lr.lineID, &lr.destID, &lr.depStop, &lr.arrStop,
			&lr.depLoc, &lr.arrLoc, &lr.depTime, &lr.arrTime,
			&lr.distance, &lr.path, &lr.message)
		if err != nil {
			return nil, fmt.Errorf("scanning leg: %w", err)
		}
		legRows = append(legRows, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading legs: %w", err)
	}

	legs := make([]model.Leg, 0, len(legRows))
	for _, lr := range legRows {
		leg, err := s.resolveLeg(lr)
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}

	from, err := s.loadLocation(fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.loadLocation(toID)
	if err != nil {
		return nil, err
	}

	trip := &model.Trip{
		ID:       id,
		From:     from,
		To:       to,
		Legs:     legs,
		Capacity: decodeCapacity(capacity),
	}
	if numChanges.Valid {
		n := int(numChanges.Int64)
		trip.NumChanges = &n
	}
	return trip, nil
}

func (s *SQLiteStorage) resolveLeg(lr legRow) (model.Leg, error) {
	path, err := DecodePath(lr.path)
	if err != nil {
		return nil, fmt.Errorf("decoding path: %w", err)
	}

	if lr.kind == 0 {
		line, err := s.loadLine(lr.lineID.String)
		if err != nil {
			return nil, err
		}
		dep, err := s.loadStop(lr.depStop.Int64)
		if err != nil {
			return nil, err
		}
		arr, err := s.loadStop(lr.arrStop.Int64)
		if err != nil {
			return nil, err
		}

		leg := &model.PublicLeg{
			Line:       line,
			Departure:  dep,
			Arrival:    arr,
			PathCoords: path,
			Message:    lr.message,
		}

		if lr.destID.Valid {
			dest, err := s.loadLocation(lr.destID.Int64)
			if err != nil {
				return nil, err
			}
			leg.Destination = &dest
		}

		stopRows, err := s.db.Query(`
SELECT stop_id FROM trip_leg_stops WHERE leg_id = ? ORDER BY position`, lr.id)
		if err != nil {
			return nil, fmt.Errorf("loading leg stops: %w", err)
		}
		stopIDs := []int64{}
		for stopRows.Next() {
			var sid int64
			if err := stopRows.Scan(&sid); err != nil {
				stopRows.Close()
				return nil, fmt.Errorf("scanning leg stop: %w", err)
			}
			stopIDs = append(stopIDs, sid)
		}
		stopRows.Close()
		for _, sid := range stopIDs {
			stop, err := s.loadStop(sid)
			if err != nil {
				return nil, err
			}
			leg.Intermediate = append(leg.Intermediate, stop)
		}

		return leg, nil
	}

	dep, err := s.loadLocation(lr.depLoc.Int64)
	if err != nil {
		return nil, err
	}
	arr, err := s.loadLocation(lr.arrLoc.Int64)
	if err != nil {
		return nil, err
	}
	return &model.IndividualLeg{
		Mode:        model.IndividualMode(lr.kind - 1),
		Departure:   dep,
		DepartureAt: lr.depTime.Time,
		Arrival:     arr,
		ArrivalAt:   lr.arrTime.Time,
		PathCoords:  path,
		Distance:    lr.distance,
	}, nil
}

func (s *SQLiteStorage) ListTrips(network string) ([]*model.Trip, error) {
	rows, err := s.db.Query(`
SELECT id FROM trips WHERE network = ? ORDER BY first_departure`, network)
	if err != nil {
		return nil, fmt.Errorf("listing trips: %w", err)
	}

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning trip id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	trips := make([]*model.Trip, 0, len(ids))
	for _, id := range ids {
		trip, err := s.GetTrip(network, id)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, nil
}

func (s *SQLiteStorage) SweepTrips(cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}

	removed, err := s.sweepTripsTx(tx, cutoff)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return removed, nil
}

func (s *SQLiteStorage) sweepTripsTx(tx *sql.Tx, cutoff time.Time) (int64, error) {
	_, err := tx.Exec(`
DELETE FROM trip_leg_stops WHERE leg_id IN (
    SELECT tl.id FROM trip_legs tl
    JOIN trips t ON t.network = tl.network AND t.id = tl.trip_id
    WHERE t.last_arrival < ?)`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting leg stops: %w", err)
	}

	_, err = tx.Exec(`
DELETE FROM trip_legs WHERE EXISTS (
    SELECT 1 FROM trips t
    WHERE t.network = trip_legs.network AND t.id = trip_legs.trip_id
        AND t.last_arrival < ?)`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting legs: %w", err)
	}

	res, err := tx.Exec(`DELETE FROM trips WHERE last_arrival < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting trips: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted trips: %w", err)
	}

	_, err = tx.Exec(`
DELETE FROM stops WHERE id NOT IN (
    SELECT departure_stop FROM trip_legs WHERE departure_stop IS NOT NULL
    UNION SELECT arrival_stop FROM trip_legs WHERE arrival_stop IS NOT NULL
    UNION SELECT stop_id FROM trip_leg_stops)`)
	if err != nil {
		return 0, fmt.Errorf("deleting orphaned stops: %w", err)
	}

	_, err = tx.Exec(`
DELETE FROM lines WHERE id NOT IN (
    SELECT line_id FROM trip_legs WHERE line_id IS NOT NULL)`)
	if err != nil {
		return 0, fmt.Errorf("deleting orphaned lines: %w", err)
	}

	_, err = tx.Exec(`
DELETE FROM locations WHERE id NOT IN (
    SELECT location_id FROM stops
    UNION SELECT from_location FROM trips
    UNION SELECT to_location FROM trips
    UNION SELECT destination_id FROM trip_legs WHERE destination_id IS NOT NULL
    UNION SELECT departure_location FROM trip_legs WHERE departure_location IS NOT NULL
    UNION SELECT arrival_location FROM trip_legs WHERE arrival_location IS NOT NULL)`)
	if err != nil {
		return 0, fmt.Errorf("deleting orphaned locations: %w", err)
	}

	return removed, nil
}

func (s *SQLiteStorage) ListFavorites(network string) ([]*FavoriteLocation, error) {
	rows, err := s.db.Query(`
SELECT id, loc_type, ext_id, lat, lon, place, name, products, from_count, via_count, to_count
FROM favorites
WHERE network = ?
ORDER BY from_count + via_count + to_count DESC, name`, network)
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	defer rows.Close()

	favorites := []*FavoriteLocation{}
	for rows.Next() {
		fav, err := scanFavorite(rows, network)
		if err != nil {
			return nil, err
		}
		favorites = append(favorites, fav)
	}
	return favorites, rows.Err()
}

func (s *SQLiteStorage) FindFavorite(network string, loc model.Location) (*FavoriteLocation, error) {
	rows, err := s.db.Query(`
SELECT id, loc_type, ext_id, lat, lon, place, name, products, from_count, via_count, to_count
FROM favorites
WHERE network = ? AND loc_type = ? AND ext_id = ? AND lat = ? AND lon = ? AND place = ? AND name = ?`,
		network, int(loc.Type), loc.ID, loc.Lat, loc.Lon, loc.Place, loc.Name)
	if err != nil {
		return nil, fmt.Errorf("finding favorite: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanFavorite(rows, network)
}

func (s *SQLiteStorage) InsertFavorite(network string, loc model.Location) (*FavoriteLocation, error) {
	res, err := s.db.Exec(`
INSERT INTO favorites (network, loc_type, ext_id, lat, lon, place, name, products)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		network, int(loc.Type), loc.ID, loc.Lat, loc.Lon, loc.Place, loc.Name, int(loc.Products))
	if err != nil {
		return nil, fmt.Errorf("inserting favorite: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting favorite id: %w", err)
	}
	return &FavoriteLocation{ID: id, Network: network, Location: loc}, nil
}

func (s *SQLiteStorage) BumpFavorite(id int64, role FavoriteRole) error {
	column, err := favoriteRoleColumn(role)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`UPDATE favorites SET `+column+` = `+column+` + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("bumping favorite: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) WriteSearch(search Search) error {
	_, err := s.db.Exec(`
INSERT INTO searches (uid, network, from_favorite, via_favorite, to_favorite, created_at, last_used, pinned)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (network, from_favorite, via_favorite, to_favorite) DO UPDATE SET
    last_used = excluded.last_used`,
		search.UID, search.Network, search.FromFavorite, search.ViaFavorite,
		search.ToFavorite, search.CreatedAt.UTC(), search.LastUsed.UTC(), search.Pinned)
	if err != nil {
		return fmt.Errorf("writing search: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListSearches(network string) ([]Search, error) {
	rows, err := s.db.Query(`
SELECT uid, from_favorite, via_favorite, to_favorite, created_at, last_used, pinned
FROM searches
WHERE network = ?
ORDER BY pinned DESC, last_used DESC`, network)
	if err != nil {
		return nil, fmt.Errorf("listing searches: %w", err)
	}
	defer rows.Close()

	searches := []Search{}
	for rows.Next() {
		search := Search{Network: network}
		err := rows.Scan(
			&search.UID, &search.FromFavorite, &search.ViaFavorite,
			&search.ToFavorite, &search.CreatedAt, &search.LastUsed, &search.Pinned)
		if err != nil {
			return nil, fmt.Errorf("scanning search: %w", err)
		}
		searches = append(searches, search)
	}
	return searches, rows.Err()
}

func scanFavorite(rows *sql.Rows, network string) (*FavoriteLocation, error) {
	fav := &FavoriteLocation{Network: network}
	var locType, products int
	err := rows.Scan(
		&fav.ID, &locType, &fav.Location.ID, &fav.Location.Lat, &fav.Location.Lon,
		&fav.Location.Place, &fav.Location.Name, &products,
		&fav.FromCount, &fav.ViaCount, &fav.ToCount)
	if err != nil {
		return nil, fmt.Errorf("scanning favorite: %w", err)
	}
	fav.Location.Type = model.LocationType(locType)
	fav.Location.Products = model.ProductSet(products)
	return fav, nil
}

func favoriteRoleColumn(role FavoriteRole) (string, error) {
	switch role {
	case RoleFrom:
		return "from_count", nil
	case RoleVia:
		return "via_count", nil
	case RoleTo:
		return "to_count", nil
	}
	return "", fmt.Errorf("unknown favorite role %d", role)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func encodeCapacity(capacity []int) string {
	if len(capacity) == 0 {
		return ""
	}
	parts := make([]string, len(capacity))
	for i, c := range capacity {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

func decodeCapacity(encoded string) []int {
	if encoded == "" {
		return nil
	}
	parts := strings.Split(encoded, ",")
	capacity := make([]int, 0, len(parts))
	for _, part := range parts {
		c, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		capacity = append(capacity, c)
	}
	return capacity
}
