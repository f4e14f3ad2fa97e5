package schedule

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagekit/transit/model"
)

func writeFixture(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestParseClock(t *testing.T) {
	for s, expected := range map[string]int{
		"00:00": 0,
		"08:15": 495,
		"23:59": 1439,
		// Runs crossing midnight use hours past 23.
		"25:30": 1530,
	} {
		got, err := parseClock(s)
		require.NoError(t, err, s)
		assert.Equal(t, expected, got, s)
	}

	for _, s := range []string{"", "8", "8:15:00", "48:00", "-1:00", "08:60", "ab:cd"} {
		_, err := parseClock(s)
		assert.Error(t, err, s)
	}
}

func TestLoadStations(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"stations.csv": `station_id,station_name,place,lat,lon,products
hbf,Hauptbahnhof,Berlin,52.525,13.369,SU
alex,Alexanderplatz,Berlin,52.5215,13.411,
`,
	})

	stations, err := loadStations(dir, "test")
	require.NoError(t, err)
	require.Len(t, stations, 2)

	hbf := stations["hbf"]
	assert.Equal(t, model.LocationTypeStation, hbf.Type)
	assert.Equal(t, 52525000, hbf.Lat)
	assert.Equal(t, 13369000, hbf.Lon)
	assert.Equal(t, "Berlin", hbf.Place)
	assert.True(t, hbf.Products.Contains(model.ProductSuburbanTrain))
	assert.True(t, hbf.Products.Contains(model.ProductSubway))
	assert.False(t, hbf.Products.Contains(model.ProductBus))

	// Products are optional.
	assert.Equal(t, model.ProductSet(0), stations["alex"].Products)
}

func TestLoadStationsRejectsBadRecords(t *testing.T) {
	for name, csv := range map[string]string{
		"missing id": `station_id,station_name,place,lat,lon,products
,Hauptbahnhof,Berlin,52.525,13.369,S
`,
		"repeated id": `station_id,station_name,place,lat,lon,products
hbf,Hauptbahnhof,Berlin,52.525,13.369,S
hbf,Hauptbahnhof,Berlin,52.525,13.369,S
`,
		"unknown product": `station_id,station_name,place,lat,lon,products
hbf,Hauptbahnhof,Berlin,52.525,13.369,X
`,
	} {
		dir := writeFixture(t, map[string]string{"stations.csv": csv})
		_, err := loadStations(dir, "test")
		assert.Error(t, err, name)
	}
}

func TestLoadLines(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"lines.csv": `line_id,product,label,line_name,color
s3,S,S3,S3: Spandau - Erkner,0077BB
u8,U,U8,,
`,
	})

	lines, err := loadLines(dir, "test")
	require.NoError(t, err)
	require.Len(t, lines, 2)

	s3 := lines["s3"]
	assert.Equal(t, model.ProductSuburbanTrain, s3.Product)
	assert.Equal(t, "S3", s3.Label)
	require.NotNil(t, s3.Style)
	assert.Equal(t, 0xFF0077BB, s3.Style.BackgroundColor)

	assert.Nil(t, lines["u8"].Style)
}

func TestLoadLinesRejectsBadRecords(t *testing.T) {
	for name, csv := range map[string]string{
		"missing id": `line_id,product,label,line_name,color
,S,S3,,
`,
		"bad product": `line_id,product,label,line_name,color
s3,XX,S3,,
`,
		"bad color": `line_id,product,label,line_name,color
s3,S,S3,,zzz
`,
	} {
		dir := writeFixture(t, map[string]string{"lines.csv": csv})
		_, err := loadLines(dir, "test")
		assert.Error(t, err, name)
	}
}

func TestLoadRuns(t *testing.T) {
	stations := map[string]model.Location{
		"hbf":  {Type: model.LocationTypeStation, ID: "hbf"},
		"alex": {Type: model.LocationTypeStation, ID: "alex"},
	}
	lines := map[string]model.Line{
		"s3": model.NewLine("s3", "test", model.ProductSuburbanTrain, "S3", ""),
	}

	// Rows out of sequence order get sorted by seq.
	dir := writeFixture(t, map[string]string{
		"stop_times.csv": `line_id,run,station_id,seq,arrival,departure
s3,1,alex,2,08:10,
s3,1,hbf,1,,08:00
`,
	})
	runs, err := loadRuns(dir, stations, lines)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Len(t, runs[0].stops, 2)
	assert.Equal(t, "hbf", runs[0].stops[0].station)
	assert.Equal(t, 480, runs[0].stops[0].departure)
	assert.Equal(t, -1, runs[0].stops[0].arrival)
	assert.Equal(t, "alex", runs[0].stops[1].station)
	assert.Equal(t, 490, runs[0].stops[1].arrival)
	assert.Equal(t, -1, runs[0].stops[1].departure)

	for name, csv := range map[string]string{
		"unknown line": `line_id,run,station_id,seq,arrival,departure
nope,1,hbf,1,,08:00
`,
		"unknown station": `line_id,run,station_id,seq,arrival,departure
s3,1,nope,1,,08:00
`,
		"single stop": `line_id,run,station_id,seq,arrival,departure
s3,1,hbf,1,,08:00
`,
		"no time at all": `line_id,run,station_id,seq,arrival,departure
s3,1,hbf,1,,
s3,1,alex,2,08:10,
`,
	} {
		dir := writeFixture(t, map[string]string{"stop_times.csv": csv})
		_, err := loadRuns(dir, stations, lines)
		assert.Error(t, err, name)
	}
}
