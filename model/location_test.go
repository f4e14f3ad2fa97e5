package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagekit/transit/model"
)

func TestLocationEqualPrecedence(t *testing.T) {
	// IDs decide alone when both have one.
	a := model.Location{Type: model.LocationTypeStation, ID: "900100001", Lat: 52520000, Lon: 13410000, Name: "Alexanderplatz"}
	b := model.Location{Type: model.LocationTypeStation, ID: "900100001", Lat: 0, Lon: 0, Name: "Alex"}
	assert.True(t, a.Equal(b))

	b.ID = "900100002"
	assert.False(t, a.Equal(b))

	// Without IDs, coordinates decide.
	c := model.Location{Type: model.LocationTypeAddress, Lat: 52520000, Lon: 13410000, Name: "Somewhere"}
	d := model.Location{Type: model.LocationTypeAddress, Lat: 52520000, Lon: 13410000, Name: "Somewhere else"}
	assert.True(t, c.Equal(d))

	d.Lon++
	assert.False(t, c.Equal(d))

	// Last resort: name and place.
	e := model.Location{Name: "Hauptbahnhof", Place: "Berlin"}
	f := model.Location{Name: "Hauptbahnhof", Place: "Berlin"}
	assert.True(t, e.Equal(f))
	f.Place = "Hamburg"
	assert.False(t, e.Equal(f))
}

func TestLocationCheck(t *testing.T) {
	ok := model.CoordLocation(52520000, 13410000)
	require.NoError(t, ok.Check())

	noCoord := model.Location{Type: model.LocationTypeCoord}
	assert.Error(t, noCoord.Check())

	named := model.Location{Type: model.LocationTypeCoord, Lat: 1, Lon: 2, Name: "nope"}
	assert.Error(t, named.Check())

	// Other types are unconstrained.
	assert.NoError(t, model.Location{Type: model.LocationTypeStation}.Check())
}

func TestLocationFullName(t *testing.T) {
	assert.Equal(t, "Berlin, Hauptbahnhof", model.Location{Place: "Berlin", Name: "Hauptbahnhof"}.FullName())
	assert.Equal(t, "Hauptbahnhof", model.Location{Name: "Hauptbahnhof"}.FullName())
	assert.Equal(t, "Berlin", model.Location{Place: "Berlin"}.FullName())
	assert.Equal(t, "52.520000/13.410000", model.CoordLocation(52520000, 13410000).FullName())
	assert.Equal(t, "", model.Location{}.FullName())
}

func TestLocationIdent(t *testing.T) {
	assert.Equal(t, "id1", model.Location{ID: "id1", Lat: 1, Lon: 2, Name: "x"}.Ident())
	assert.Equal(t, "1/2", model.Location{Lat: 1, Lon: 2, Name: "x"}.Ident())
	assert.Equal(t, "Berlin-Alex", model.Location{Place: "Berlin", Name: "Alex"}.Ident())
}

func TestPointFixedPoint(t *testing.T) {
	p := model.PointFromDegrees(52.52, 13.405)
	assert.Equal(t, 52520000, p.Lat)
	assert.Equal(t, 13405000, p.Lon)
	assert.InDelta(t, 52.52, p.LatDegrees(), 1e-9)
	assert.InDelta(t, 13.405, p.LonDegrees(), 1e-9)
}
