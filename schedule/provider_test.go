package schedule_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagekit/transit"
	"github.com/voyagekit/transit/model"
	"github.com/voyagekit/transit/schedule"
)

// A small network: the S3 runs Hauptbahnhof - Alexanderplatz -
// Ostkreuz twice a morning, the X7 bus connects Ostkreuz to the
// airport, and the U8 leaves Alexanderplatz northbound.
func writeTimetable(t *testing.T) string {
	dir := t.TempDir()

	files := map[string]string{
		"stations.csv": `station_id,station_name,place,lat,lon,products
hbf,Hauptbahnhof,Berlin,52.525,13.369,SU
alex,Alexanderplatz,Berlin,52.5215,13.411,SU
ostkreuz,Ostkreuz,Berlin,52.503,13.469,S
ber,Flughafen BER,Schönefeld,52.365,13.501,B
schoenhauser,Schönhauser Allee,Berlin,52.5495,13.4154,U
schoeneberg,Schöneberg,Berlin,52.4793,13.3519,S
`,
		"lines.csv": `line_id,product,label,line_name,color
s3,S,S3,S3: Spandau - Erkner,0077BB
u8,U,U8,,
x7,B,X7,,
`,
		"stop_times.csv": `line_id,run,station_id,seq,arrival,departure
s3,1,hbf,1,,08:00
s3,1,alex,2,08:10,08:11
s3,1,ostkreuz,3,08:20,
s3,2,hbf,1,,09:00
s3,2,alex,2,09:10,09:11
s3,2,ostkreuz,3,09:20,
x7,1,ostkreuz,1,,08:30
x7,1,ber,2,08:50,
x7,2,ostkreuz,1,,09:30
x7,2,ber,2,09:50,
u8,1,alex,1,,08:05
u8,1,schoenhauser,2,08:15,
`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	return dir
}

func loadTimetable(t *testing.T) *schedule.Timetable {
	tt, err := schedule.Load("test", writeTimetable(t))
	require.NoError(t, err)
	return tt
}

func when(hour, min int) time.Time {
	return time.Date(2026, 9, 1, hour, min, 0, 0, time.UTC)
}

func station(id string) model.Location {
	return model.Location{Type: model.LocationTypeStation, ID: id}
}

func TestQueryTripsDirect(t *testing.T) {
	tt := loadTimetable(t)

	res, err := tt.QueryTrips(context.Background(), transit.TripQuery{
		From: station("hbf"),
		To:   station("ostkreuz"),
		When: when(7, 45),
	})
	require.NoError(t, err)
	require.Equal(t, transit.StatusOK, res.Status)
	require.Len(t, res.Trips, 2)

	// Both S3 runs, earliest first.
	assert.Equal(t, when(8, 0), res.Trips[0].FirstDepartureTime())
	assert.Equal(t, when(8, 20), res.Trips[0].LastArrivalTime())
	assert.Equal(t, when(9, 0), res.Trips[1].FirstDepartureTime())

	// The resolved endpoints carry the full station records.
	assert.Equal(t, "Hauptbahnhof", res.From.Name)
	assert.Equal(t, "Ostkreuz", res.To.Name)

	// One leg, with Alexanderplatz as an intermediate stop and the
	// run's terminus as destination.
	require.Len(t, res.Trips[0].Legs, 1)
	leg := res.Trips[0].Legs[0].(*model.PublicLeg)
	assert.Equal(t, "S3", leg.Line.Label)
	require.Len(t, leg.Intermediate, 1)
	assert.Equal(t, "Alexanderplatz", leg.Intermediate[0].Location.Name)
	require.NotNil(t, leg.Destination)
	assert.Equal(t, "Ostkreuz", leg.Destination.Name)
	assert.Equal(t, 0, res.Trips[0].Changes())
}

func TestQueryTripsByName(t *testing.T) {
	tt := loadTimetable(t)

	// Exact and prefix matches both resolve when unambiguous.
	res, err := tt.QueryTrips(context.Background(), transit.TripQuery{
		From: model.Location{Name: "Hauptbahnhof"},
		To:   model.Location{Name: "ostkr"},
		When: when(7, 45),
	})
	require.NoError(t, err)
	require.Equal(t, transit.StatusOK, res.Status)
	assert.Len(t, res.Trips, 2)
}

func TestQueryTripsArriveBy(t *testing.T) {
	tt := loadTimetable(t)

	res, err := tt.QueryTrips(context.Background(), transit.TripQuery{
		From:     station("hbf"),
		To:       station("ostkreuz"),
		When:     when(9, 45),
		ArriveBy: true,
	})
	require.NoError(t, err)
	require.Equal(t, transit.StatusOK, res.Status)
	require.Len(t, res.Trips, 2)
	assert.True(t, res.Trips[1].LastArrivalTime().Before(when(9, 45)))
}

func TestQueryTripsTransfer(t *testing.T) {
	tt := loadTimetable(t)

	// No line runs Hauptbahnhof - airport directly; the planner
	// changes to the X7 at Ostkreuz.
	res, err := tt.QueryTrips(context.Background(), transit.TripQuery{
		From: station("hbf"),
		To:   station("ber"),
		When: when(7, 45),
	})
	require.NoError(t, err)
	require.Equal(t, transit.StatusOK, res.Status)
	require.Len(t, res.Trips, 1)

	trip := res.Trips[0]
	require.Len(t, trip.Legs, 2)
	assert.Equal(t, "S3", trip.Legs[0].(*model.PublicLeg).Line.Label)
	assert.Equal(t, "X7", trip.Legs[1].(*model.PublicLeg).Line.Label)
	assert.Equal(t, 1, trip.Changes())
	assert.True(t, trip.Travelable())

	// The transfer respects the minimum change time.
	change := trip.Legs[1].DepartureTime().Sub(trip.Legs[0].ArrivalTime())
	assert.GreaterOrEqual(t, change, tt.MinTransfer)
}

func TestQueryTripsVia(t *testing.T) {
	tt := loadTimetable(t)

	via := station("alex")
	res, err := tt.QueryTrips(context.Background(), transit.TripQuery{
		From: station("hbf"),
		Via:  &via,
		To:   station("ostkreuz"),
		When: when(7, 45),
	})
	require.NoError(t, err)
	require.Equal(t, transit.StatusOK, res.Status)
	require.Len(t, res.Trips, 1)

	// First S3 to Alexanderplatz, then the next run onward.
	trip := res.Trips[0]
	require.Len(t, trip.Legs, 2)
	assert.Equal(t, "Alexanderplatz", trip.Legs[0].ArrivalLocation().Name)
	assert.Equal(t, when(8, 0), trip.FirstDepartureTime())
	assert.Equal(t, when(9, 20), trip.LastArrivalTime())
}

func TestQueryTripsProductFilter(t *testing.T) {
	tt := loadTimetable(t)

	res, err := tt.QueryTrips(context.Background(), transit.TripQuery{
		From:     station("hbf"),
		To:       station("ostkreuz"),
		When:     when(7, 45),
		Products: model.NewProductSet(model.ProductSubway),
	})
	require.NoError(t, err)
	require.Equal(t, transit.StatusOK, res.Status)
	assert.Len(t, res.Trips, 0)
}

func TestQueryTripsStatuses(t *testing.T) {
	tt := loadTimetable(t)
	bg := context.Background()

	// Zero time.
	res, err := tt.QueryTrips(bg, transit.TripQuery{
		From: station("hbf"), To: station("ostkreuz"),
	})
	require.NoError(t, err)
	assert.Equal(t, transit.StatusInvalidDate, res.Status)

	// Unknown endpoints, by role.
	res, err = tt.QueryTrips(bg, transit.TripQuery{
		From: model.Location{Name: "Nirgendwo"}, To: station("ostkreuz"), When: when(8, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, transit.StatusUnknownFrom, res.Status)

	res, err = tt.QueryTrips(bg, transit.TripQuery{
		From: station("hbf"), To: station("nope"), When: when(8, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, transit.StatusUnknownTo, res.Status)

	nowhere := model.Location{Name: "Nirgendwo"}
	res, err = tt.QueryTrips(bg, transit.TripQuery{
		From: station("hbf"), Via: &nowhere, To: station("ostkreuz"), When: when(8, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, transit.StatusUnknownVia, res.Status)

	// A name shared as prefix by two stations is ambiguous, and the
	// candidates come back for selection.
	res, err = tt.QueryTrips(bg, transit.TripQuery{
		From: model.Location{Name: "Schön"}, To: station("ostkreuz"), When: when(8, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, transit.StatusAmbiguous, res.Status)
	require.Len(t, res.AmbiguousFrom, 2)
	assert.Equal(t, "Schöneberg", res.AmbiguousFrom[0].Name)
	assert.Equal(t, "Schönhauser Allee", res.AmbiguousFrom[1].Name)

	// Both endpoints resolving to the same station.
	res, err = tt.QueryTrips(bg, transit.TripQuery{
		From: station("alex"), To: model.Location{Name: "Alexanderplatz"}, When: when(8, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, transit.StatusTooClose, res.Status)
}

func TestQueryTripsCoordEndpoints(t *testing.T) {
	tt := loadTimetable(t)

	// A coordinate near Hauptbahnhof snaps to it.
	res, err := tt.QueryTrips(context.Background(), transit.TripQuery{
		From: model.CoordLocation(52526000, 13370000),
		To:   station("ostkreuz"),
		When: when(7, 45),
	})
	require.NoError(t, err)
	require.Equal(t, transit.StatusOK, res.Status)
	assert.Equal(t, "hbf", res.From.ID)
	assert.Len(t, res.Trips, 2)

	// A coordinate in the middle of nowhere does not.
	res, err = tt.QueryTrips(context.Background(), transit.TripQuery{
		From: model.CoordLocation(53500000, 14500000),
		To:   station("ostkreuz"),
		When: when(7, 45),
	})
	require.NoError(t, err)
	assert.Equal(t, transit.StatusUnresolvableAddress, res.Status)
}

func TestQueryMoreTripsShiftsWindow(t *testing.T) {
	tt := loadTimetable(t)
	bg := context.Background()

	res, err := tt.QueryTrips(bg, transit.TripQuery{
		From: station("hbf"),
		To:   station("ostkreuz"),
		When: when(7, 0),
	})
	require.NoError(t, err)
	require.Equal(t, transit.StatusOK, res.Status)
	require.Len(t, res.Trips, 1)
	assert.Equal(t, when(8, 0), res.Trips[0].FirstDepartureTime())

	require.NotNil(t, res.Context)
	assert.True(t, res.Context.CanQueryEarlier())
	assert.True(t, res.Context.CanQueryLater())

	// The next window holds the later run.
	more, err := tt.QueryMoreTrips(bg, res.Context, true)
	require.NoError(t, err)
	require.Equal(t, transit.StatusOK, more.Status)
	require.Len(t, more.Trips, 1)
	assert.Equal(t, when(9, 0), more.Trips[0].FirstDepartureTime())

	// The previous one is empty, but still extendable.
	earlier, err := tt.QueryMoreTrips(bg, res.Context, false)
	require.NoError(t, err)
	require.Equal(t, transit.StatusOK, earlier.Status)
	assert.Len(t, earlier.Trips, 0)
	require.NotNil(t, earlier.Context)
}

func TestQueryDepartures(t *testing.T) {
	tt := loadTimetable(t)

	deps, err := tt.QueryDepartures(context.Background(), "alex", when(8, 0), 3)
	require.NoError(t, err)
	require.Len(t, deps, 3)

	assert.Equal(t, "U8", deps[0].Line.Label)
	assert.Equal(t, when(8, 5), *deps[0].Stop.PlannedDeparture)
	assert.Equal(t, "Schönhauser Allee", deps[0].Destination.Name)

	assert.Equal(t, "S3", deps[1].Line.Label)
	assert.Equal(t, when(8, 11), *deps[1].Stop.PlannedDeparture)
	assert.Equal(t, "Ostkreuz", deps[1].Destination.Name)

	assert.Equal(t, when(9, 11), *deps[2].Stop.PlannedDeparture)

	_, err = tt.QueryDepartures(context.Background(), "nope", when(8, 0), 3)
	assert.Error(t, err)
}

func TestSuggestLocations(t *testing.T) {
	tt := loadTimetable(t)
	bg := context.Background()

	// Exact beats prefix beats substring.
	locations, err := tt.SuggestLocations(bg, "ostkreuz", 10)
	require.NoError(t, err)
	require.NotEmpty(t, locations)
	assert.Equal(t, "Ostkreuz", locations[0].Name)

	locations, err = tt.SuggestLocations(bg, "schön", 10)
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, "Schöneberg", locations[0].Name)
	assert.Equal(t, "Schönhauser Allee", locations[1].Name)

	locations, err = tt.SuggestLocations(bg, "allee", 10)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "Schönhauser Allee", locations[0].Name)

	locations, err = tt.SuggestLocations(bg, "xyzzy", 10)
	require.NoError(t, err)
	assert.Empty(t, locations)

	// The limit caps the result.
	locations, err = tt.SuggestLocations(bg, "schön", 1)
	require.NoError(t, err)
	assert.Len(t, locations, 1)
}

func TestQueryNearbyLocations(t *testing.T) {
	tt := loadTimetable(t)

	locations, err := tt.QueryNearbyLocations(
		context.Background(), model.PointFromDegrees(52.526, 13.370), 2)
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, "hbf", locations[0].ID)
	assert.Equal(t, "alex", locations[1].ID)
}

func TestQueryHonorsContext(t *testing.T) {
	tt := loadTimetable(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tt.QueryTrips(ctx, transit.TripQuery{
		From: station("hbf"), To: station("ostkreuz"), When: when(8, 0),
	})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = tt.QueryDepartures(ctx, "alex", when(8, 0), 3)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = tt.SuggestLocations(ctx, "alex", 3)
	assert.ErrorIs(t, err, context.Canceled)
}
