package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagekit/transit/model"
)

func TestHaversineDistance(t *testing.T) {
	type city struct {
		Lat float64
		Lon float64
	}
	var loc = map[string]city{
		"nyc":    {40.700000, -74.100000},
		"philly": {40.000000, -75.200000},
		"sf":     {37.800000, -122.500000},
		"sto":    {59.300000, 17.900000},
		"lon":    {51.500000, -0.200000},
	}

	assert.InDelta(t, 121.438585, HaversineDistance(loc["nyc"].Lat, loc["nyc"].Lon, loc["philly"].Lat, loc["philly"].Lon), 0.001)
	assert.InDelta(t, 4127.311071, HaversineDistance(loc["nyc"].Lat, loc["nyc"].Lon, loc["sf"].Lat, loc["sf"].Lon), 0.001)
	assert.InDelta(t, 5572.804939, HaversineDistance(loc["nyc"].Lat, loc["nyc"].Lon, loc["lon"].Lat, loc["lon"].Lon), 0.001)
	assert.InDelta(t, 1426.989197, HaversineDistance(loc["sto"].Lat, loc["sto"].Lon, loc["lon"].Lat, loc["lon"].Lon), 0.001)
	assert.InDelta(t, 0.0, HaversineDistance(loc["nyc"].Lat, loc["nyc"].Lon, loc["nyc"].Lat, loc["nyc"].Lon), 0.001)
}

func TestEncodeDecodePath(t *testing.T) {
	path := []model.Point{
		{Lat: 52520000, Lon: 13410000},
		{Lat: 52515000, Lon: 13390000},
		{Lat: -33868000, Lon: 151209000},
	}

	encoded := EncodePath(path)
	assert.Equal(t, "52520000,13410000 52515000,13390000 -33868000,151209000", encoded)

	decoded, err := DecodePath(encoded)
	require.NoError(t, err)
	assert.Equal(t, path, decoded)

	// Empty paths stay empty.
	assert.Equal(t, "", EncodePath(nil))
	decoded, err = DecodePath("")
	require.NoError(t, err)
	assert.Nil(t, decoded)

	// Garbage is rejected.
	_, err = DecodePath("52,13 nope")
	assert.Error(t, err)
	_, err = DecodePath("52;13")
	assert.Error(t, err)
}

func TestEncodeDecodeCapacity(t *testing.T) {
	assert.Equal(t, "", encodeCapacity(nil))
	assert.Nil(t, decodeCapacity(""))

	encoded := encodeCapacity([]int{1, 2})
	assert.Equal(t, "1,2", encoded)
	assert.Equal(t, []int{1, 2}, decodeCapacity(encoded))
}
