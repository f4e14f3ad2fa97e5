package model

import (
	"time"
)

// A leg's boundary point: a location annotated with planned and
// predicted arrival/departure times, platform positions, and
// cancellation flags. Nil times mean "unknown".
type Stop struct {
	Location Location

	PlannedArrival    *time.Time
	PredictedArrival  *time.Time
	PlannedDeparture  *time.Time
	PredictedDeparture *time.Time

	PlannedArrivalPosition    string
	PredictedArrivalPosition  string
	PlannedDeparturePosition  string
	PredictedDeparturePosition string

	ArrivalCancelled   bool
	DepartureCancelled bool
}

// The effective arrival time: predicted when available, else
// planned. Pass preferPlanned to flip the preference.
func (s *Stop) ArrivalTime(preferPlanned bool) *time.Time {
	if preferPlanned {
		if s.PlannedArrival != nil {
			return s.PlannedArrival
		}
		return s.PredictedArrival
	}
	if s.PredictedArrival != nil {
		return s.PredictedArrival
	}
	return s.PlannedArrival
}

func (s *Stop) DepartureTime(preferPlanned bool) *time.Time {
	if preferPlanned {
		if s.PlannedDeparture != nil {
			return s.PlannedDeparture
		}
		return s.PredictedDeparture
	}
	if s.PredictedDeparture != nil {
		return s.PredictedDeparture
	}
	return s.PlannedDeparture
}

// Predicted minus planned arrival, when both are known.
func (s *Stop) ArrivalDelay() *time.Duration {
	if s.PlannedArrival == nil || s.PredictedArrival == nil {
		return nil
	}
	d := s.PredictedArrival.Sub(*s.PlannedArrival)
	return &d
}

func (s *Stop) DepartureDelay() *time.Duration {
	if s.PlannedDeparture == nil || s.PredictedDeparture == nil {
		return nil
	}
	d := s.PredictedDeparture.Sub(*s.PlannedDeparture)
	return &d
}

// The effective arrival platform.
func (s *Stop) ArrivalPosition() string {
	if s.PredictedArrivalPosition != "" {
		return s.PredictedArrivalPosition
	}
	return s.PlannedArrivalPosition
}

func (s *Stop) DeparturePosition() string {
	if s.PredictedDeparturePosition != "" {
		return s.PredictedDeparturePosition
	}
	return s.PlannedDeparturePosition
}

// Earliest of the four known times, or nil if none are known.
func (s *Stop) MinTime() *time.Time {
	return pickTime(func(a, b time.Time) bool { return a.Before(b) },
		s.PlannedArrival, s.PredictedArrival, s.PlannedDeparture, s.PredictedDeparture)
}

// Latest of the four known times, or nil if none are known.
func (s *Stop) MaxTime() *time.Time {
	return pickTime(func(a, b time.Time) bool { return a.After(b) },
		s.PlannedArrival, s.PredictedArrival, s.PlannedDeparture, s.PredictedDeparture)
}

func pickTime(better func(a, b time.Time) bool, times ...*time.Time) *time.Time {
	var best *time.Time
	for _, t := range times {
		if t == nil {
			continue
		}
		if best == nil || better(*t, *best) {
			best = t
		}
	}
	return best
}
