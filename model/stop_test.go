package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagekit/transit/model"
)

func TestStopEffectiveTimes(t *testing.T) {
	planned := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	predicted := planned.Add(3 * time.Minute)

	s := model.Stop{
		PlannedArrival:     &planned,
		PredictedArrival:   &predicted,
		PlannedDeparture:   &planned,
		PredictedDeparture: &predicted,
	}

	assert.Equal(t, predicted, *s.ArrivalTime(false))
	assert.Equal(t, planned, *s.ArrivalTime(true))
	assert.Equal(t, predicted, *s.DepartureTime(false))
	assert.Equal(t, planned, *s.DepartureTime(true))

	// Prediction falls back to planned and vice versa.
	s = model.Stop{PlannedArrival: &planned}
	assert.Equal(t, planned, *s.ArrivalTime(false))
	s = model.Stop{PredictedDeparture: &predicted}
	assert.Equal(t, predicted, *s.DepartureTime(true))

	s = model.Stop{}
	assert.Nil(t, s.ArrivalTime(false))
	assert.Nil(t, s.DepartureTime(false))
}

func TestStopDelays(t *testing.T) {
	planned := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	predicted := planned.Add(5 * time.Minute)

	s := model.Stop{PlannedArrival: &planned, PredictedArrival: &predicted}
	require.NotNil(t, s.ArrivalDelay())
	assert.Equal(t, 5*time.Minute, *s.ArrivalDelay())
	assert.Nil(t, s.DepartureDelay())

	early := planned.Add(-1 * time.Minute)
	s = model.Stop{PlannedDeparture: &planned, PredictedDeparture: &early}
	require.NotNil(t, s.DepartureDelay())
	assert.Equal(t, -1*time.Minute, *s.DepartureDelay())
}

func TestStopPositions(t *testing.T) {
	s := model.Stop{PlannedDeparturePosition: "3", PredictedDeparturePosition: "5"}
	assert.Equal(t, "5", s.DeparturePosition())

	s = model.Stop{PlannedArrivalPosition: "3"}
	assert.Equal(t, "3", s.ArrivalPosition())
}

func TestStopMinMaxTime(t *testing.T) {
	t0 := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(2 * time.Minute)
	t2 := t0.Add(4 * time.Minute)

	s := model.Stop{
		PlannedArrival:     &t1,
		PredictedArrival:   &t2,
		PlannedDeparture:   &t0,
		PredictedDeparture: &t1,
	}
	assert.Equal(t, t0, *s.MinTime())
	assert.Equal(t, t2, *s.MaxTime())

	s = model.Stop{}
	assert.Nil(t, s.MinTime())
	assert.Nil(t, s.MaxTime())
}
