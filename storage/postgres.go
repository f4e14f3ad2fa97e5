package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/voyagekit/transit/model"
)

type PSQLStorage struct {
	db *sql.DB
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`
DROP TABLE IF EXISTS trip_leg_stops;
DROP TABLE IF EXISTS trip_legs;
DROP TABLE IF EXISTS trips;
DROP TABLE IF EXISTS stops;
DROP TABLE IF EXISTS lines;
DROP TABLE IF EXISTS searches;
DROP TABLE IF EXISTS favorites;
DROP TABLE IF EXISTS locations;
`)
		if err != nil {
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS locations (
    id BIGSERIAL PRIMARY KEY,
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
    id BIGSERIAL PRIMARY KEY,
    location_id BIGINT NOT NULL REFERENCES locations (id),
    planned_arrival TIMESTAMPTZ,
    predicted_arrival TIMESTAMPTZ,
    planned_departure TIMESTAMPTZ,
    predicted_departure TIMESTAMPTZ,
    planned_arrival_position TEXT NOT NULL DEFAULT '',
    predicted_arrival_position TEXT NOT NULL DEFAULT '',
    planned_departure_position TEXT NOT NULL DEFAULT '',
    predicted_departure_position TEXT NOT NULL DEFAULT '',
    arrival_cancelled BOOLEAN NOT NULL DEFAULT FALSE,
    departure_cancelled BOOLEAN NOT NULL DEFAULT FALSE
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
    from_location BIGINT NOT NULL REFERENCES locations (id),
    to_location BIGINT NOT NULL REFERENCES locations (id),
    capacity TEXT NOT NULL DEFAULT '',
    num_changes INTEGER,
    first_departure TIMESTAMPTZ NOT NULL,
    last_arrival TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (network, id)
);

CREATE TABLE IF NOT EXISTS trip_legs (
    id BIGSERIAL PRIMARY KEY,
    network TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    kind INTEGER NOT NULL,
    line_id TEXT REFERENCES lines (id),
    destination_id BIGINT REFERENCES locations (id),
    departure_stop BIGINT REFERENCES stops (id),
    arrival_stop BIGINT REFERENCES stops (id),
    departure_location BIGINT REFERENCES locations (id),
    arrival_location BIGINT REFERENCES locations (id),
    departure_time TIMESTAMPTZ,
    arrival_time TIMESTAMPTZ,
    distance INTEGER NOT NULL DEFAULT 0,
    path TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS trip_legs_trip ON trip_legs (network, trip_id, position);

CREATE TABLE IF NOT EXISTS trip_leg_stops (
    leg_id BIGINT NOT NULL REFERENCES trip_legs (id),
    position INTEGER NOT NULL,
    stop_id BIGINT NOT NULL REFERENCES stops (id),
    PRIMARY KEY (leg_id, position)
);

CREATE TABLE IF NOT EXISTS favorites (
    id BIGSERIAL PRIMARY KEY,
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
    from_favorite BIGINT NOT NULL REFERENCES favorites (id),
    via_favorite BIGINT NOT NULL DEFAULT 0,
    to_favorite BIGINT NOT NULL REFERENCES favorites (id),
    created_at TIMESTAMPTZ NOT NULL,
    last_used TIMESTAMPTZ NOT NULL,
    pinned BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE UNIQUE INDEX IF NOT EXISTS searches_endpoints
    ON searches (network, from_favorite, via_favorite, to_favorite);
`)
	if err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &PSQLStorage{db: db}, nil
}

func (s *PSQLStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *PSQLStorage) upsertLocation(tx *sql.Tx, network string, loc model.Location) (int64, error) {
	var id int64
	var err error
	if loc.HasID() {
		err = tx.QueryRow(`
SELECT id FROM locations WHERE network = $1 AND ext_id = $2`,
			network, loc.ID).Scan(&id)
	} else {
		err = tx.QueryRow(`
SELECT id FROM locations
WHERE network = $1 AND ext_id IS NULL AND loc_type = $2
    AND lat = $3 AND lon = $4 AND place = $5 AND name = $6`,
			network, int(loc.Type), loc.Lat, loc.Lon, loc.Place, loc.Name).Scan(&id)
	}
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("looking up location: %w", err)
	}

	extID := sql.NullString{String: loc.ID, Valid: loc.HasID()}
	err = tx.QueryRow(`
INSERT INTO locations (network, ext_id, loc_type, lat, lon, place, name, products)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
		network, extID, int(loc.Type), loc.Lat, loc.Lon, loc.Place, loc.Name,
		int(loc.Products)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting location: %w", err)
	}
	return id, nil
}

func (s *PSQLStorage) insertStop(tx *sql.Tx, network string, stop model.Stop) (int64, error) {
	locID, err := s.upsertLocation(tx, network, stop.Location)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow(`
INSERT INTO stops (
    location_id,
    planned_arrival, predicted_arrival,
    planned_departure, predicted_departure,
    planned_arrival_position, predicted_arrival_position,
    planned_departure_position, predicted_departure_position,
    arrival_cancelled, departure_cancelled
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`,
		locID,
		nullTime(stop.PlannedArrival), nullTime(stop.PredictedArrival),
		nullTime(stop.PlannedDeparture), nullTime(stop.PredictedDeparture),
		stop.PlannedArrivalPosition, stop.PredictedArrivalPosition,
		stop.PlannedDeparturePosition, stop.PredictedDeparturePosition,
		stop.ArrivalCancelled, stop.DepartureCancelled).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting stop: %w", err)
	}
	return id, nil
}

func (s *PSQLStorage) upsertLine(tx *sql.Tx, line model.Line) error {
	var bg, fg, border sql.NullInt64
	if line.Style != nil {
		bg = sql.NullInt64{Int64: int64(line.Style.BackgroundColor), Valid: true}
		fg = sql.NullInt64{Int64: int64(line.Style.ForegroundColor), Valid: true}
		border = sql.NullInt64{Int64: int64(line.Style.BorderColor), Valid: true}
	}
	_, err := tx.Exec(`
INSERT INTO lines (id, network, product, label, name, bg_color, fg_color, border_color, attrs, message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING`,
		line.ID, line.Network, int(line.Product), line.Label, line.Name,
		bg, fg, border, int(line.Attrs), line.Message)
	if err != nil {
		return fmt.Errorf("inserting line: %w", err)
	}
	return nil
}

func (s *PSQLStorage) WriteTrip(network string, trip *model.Trip) error {
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

func (s *PSQLStorage) writeTripTx(tx *sql.Tx, network string, trip *model.Trip) error {
	fromID, err := s.upsertLocation(tx, network, trip.From)
	if err != nil {
		return err
	}
	toID, err := s.upsertLocation(tx, network, trip.To)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
DELETE FROM trip_leg_stops WHERE leg_id IN (
    SELECT id FROM trip_legs WHERE network = $1 AND trip_id = $2)`,
		network, trip.ID)
	if err != nil {
		return fmt.Errorf("clearing leg stops: %w", err)
	}
	_, err = tx.Exec(`DELETE FROM trip_legs WHERE network = $1 AND trip_id = $2`, network, trip.ID)
	if err != nil {
		return fmt.Errorf("clearing legs: %w", err)
	}

	var numChanges sql.NullInt64
	if trip.NumChanges != nil {
		numChanges = sql.NullInt64{Int64: int64(*trip.NumChanges), Valid: true}
	}
	_, err = tx.Exec(`
INSERT INTO trips (network, id, from_location, to_location, capacity, num_changes, first_departure, last_arrival)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
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

func (s *PSQLStorage) writePublicLeg(tx *sql.Tx, network, tripID string, position int, leg *model.PublicLeg) error {
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

	var legID int64
	err = tx.QueryRow(`
INSERT INTO trip_legs (network, trip_id, position, kind, line_id, destination_id, departure_stop, arrival_stop, path, message)
VALUES ($1, $2, $3, 0, $4, $5, $6, $7, $8, $9)
RETURNING id`,
		network, tripID, position, leg.Line.ID, destID, depID, arrID,
		EncodePath(leg.PathCoords), leg.Message).Scan(&legID)
	if err != nil {
		return fmt.Errorf("inserting leg: %w", err)
	}

	for j, stop := range leg.Intermediate {
		stopID, err := s.insertStop(tx, network, stop)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
INSERT INTO trip_leg_stops (leg_id, position, stop_id) VALUES ($1, $2, $3)`,
			legID, j, stopID)
		if err != nil {
			return fmt.Errorf("inserting leg stop: %w", err)
		}
	}

	return nil
}

func (s *PSQLStorage) writeIndividualLeg(tx *sql.Tx, network, tripID string, position int, leg *model.IndividualLeg) error {
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
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		network, tripID, position, 1+int(leg.Mode), depID, arrID,
		leg.DepartureAt.UTC(), leg.ArrivalAt.UTC(), leg.Distance,
		EncodePath(leg.PathCoords))
	if err != nil {
		return fmt.Errorf("inserting leg: %w", err)
	}
	return nil
}

func (s *PSQLStorage) loadLocation(id int64) (model.Location, error) {
	var loc model.Location
	var extID sql.NullString
	var locType, products int
	err := s.db.QueryRow(`
SELECT ext_id, loc_type, lat, lon, place, name, products
FROM locations WHERE id = $1`, id).Scan(
		&extID, &locType, &loc.Lat, &loc.Lon, &loc.Place, &loc.Name, &products)
	if err != nil {
		return loc, fmt.Errorf("loading location %d: %w", id, err)
	}
	loc.ID = extID.String
	loc.Type = model.LocationType(locType)
	loc.Products = model.ProductSet(products)
	return loc, nil
}

func (s *PSQLStorage) loadStop(id int64) (model.Stop, error) {
	var stop model.Stop
	var locID int64
	var pa, ra, pd, rd sql.NullTime
	err := s.db.QueryRow(`
SELECT location_id,
    planned_arrival, predicted_arrival, planned_departure, predicted_departure,
    planned_arrival_position, predicted_arrival_position,
    planned_departure_position, predicted_departure_position,
    arrival_cancelled, departure_cancelled
FROM stops WHERE id = $1`, id).Scan(
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

func (s *PSQLStorage) loadLine(id string) (model.Line, error) {
	var line model.Line
	var product, attrs int
	var bg, fg, border sql.NullInt64
	err := s.db.QueryRow(`
SELECT id, network, product, label, name, bg_color, fg_color, border_color, attrs, message
FROM lines WHERE id = $1`, id).Scan(
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

func (s *PSQLStorage) GetTrip(network string, id string) (*model.Trip, error) {
	var fromID, toID int64
	var capacity string
	var numChanges sql.NullInt64
	err := s.db.QueryRow(`
SELECT from_location, to_location, capacity, num_changes
FROM trips WHERE network = $1 AND id = $2`, network, id).Scan(
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
WHERE network = $1 AND trip_id = $2
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

func (s *PSQLStorage) resolveLeg(lr legRow) (model.Leg, error) {
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
SELECT stop_id FROM trip_leg_stops WHERE leg_id = $1 ORDER BY position`, lr.id)
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

func (s *PSQLStorage) ListTrips(network string) ([]*model.Trip, error) {
	rows, err := s.db.Query(`
SELECT id FROM trips WHERE network = $1 ORDER BY first_departure`, network)
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

func (s *PSQLStorage) SweepTrips(cutoff time.Time) (int64, error) {
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

func (s *PSQLStorage) sweepTripsTx(tx *sql.Tx, cutoff time.Time) (int64, error) {
	_, err := tx.Exec(`
DELETE FROM trip_leg_stops WHERE leg_id IN (
    SELECT tl.id FROM trip_legs tl
    JOIN trips t ON t.network = tl.network AND t.id = tl.trip_id
    WHERE t.last_arrival < $1)`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting leg stops: %w", err)
	}

	_, err = tx.Exec(`
DELETE FROM trip_legs WHERE EXISTS (
    SELECT 1 FROM trips t
    WHERE t.network = trip_legs.network AND t.id = trip_legs.trip_id
        AND t.last_arrival < $1)`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting legs: %w", err)
	}

	res, err := tx.Exec(`DELETE FROM trips WHERE last_arrival < $1`, cutoff.UTC())
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

func (s *PSQLStorage) ListFavorites(network string) ([]*FavoriteLocation, error) {
	rows, err := s.db.Query(`
SELECT id, loc_type, ext_id, lat, lon, place, name, products, from_count, via_count, to_count
FROM favorites
WHERE network = $1
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

func (s *PSQLStorage) FindFavorite(network string, loc model.Location) (*FavoriteLocation, error) {
	rows, err := s.db.Query(`
SELECT id, loc_type, ext_id, lat, lon, place, name, products, from_count, via_count, to_count
FROM favorites
WHERE network = $1 AND loc_type = $2 AND ext_id = $3 AND lat = $4 AND lon = $5 AND place = $6 AND name = $7`,
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

func (s *PSQLStorage) InsertFavorite(network string, loc model.Location) (*FavoriteLocation, error) {
	var id int64
	err := s.db.QueryRow(`
INSERT INTO favorites (network, loc_type, ext_id, lat, lon, place, name, products)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
		network, int(loc.Type), loc.ID, loc.Lat, loc.Lon, loc.Place, loc.Name,
		int(loc.Products)).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("inserting favorite: %w", err)
	}
	return &FavoriteLocation{ID: id, Network: network, Location: loc}, nil
}

func (s *PSQLStorage) BumpFavorite(id int64, role FavoriteRole) error {
	column, err := favoriteRoleColumn(role)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`UPDATE favorites SET `+column+` = `+column+` + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bumping favorite: %w", err)
	}
	return nil
}

func (s *PSQLStorage) WriteSearch(search Search) error {
	_, err := s.db.Exec(`
INSERT INTO searches (uid, network, from_favorite, via_favorite, to_favorite, created_at, last_used, pinned)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (network, from_favorite, via_favorite, to_favorite) DO UPDATE SET
    last_used = excluded.last_used`,
		search.UID, search.Network, search.FromFavorite, search.ViaFavorite,
		search.ToFavorite, search.CreatedAt.UTC(), search.LastUsed.UTC(), search.Pinned)
	if err != nil {
		return fmt.Errorf("writing search: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ListSearches(network string) ([]Search, error) {
	rows, err := s.db.Query(`
SELECT uid, from_favorite, via_favorite, to_favorite, created_at, last_used, pinned
FROM searches
WHERE network = $1
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
