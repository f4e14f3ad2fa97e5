package transit

import (
	"errors"
	"fmt"
)

var (
	// Returned by SearchMore when no search has produced a
	// pagination context yet.
	ErrNoOngoingSearch = errors.New("no ongoing search to extend")

	// Returned by SearchMore when the pagination context does not
	// support the requested direction.
	ErrPaginationUnsupported = errors.New("pagination direction not supported")
)

// A failure reported by the network itself, as opposed to a
// transport error reaching it.
type ProviderError struct {
	Status QueryStatus
}

func (e *ProviderError) Error() string {
	switch e.Status {
	case StatusAmbiguous:
		return "location is ambiguous, please select one"
	case StatusTooClose:
		return "start and destination are too close to each other"
	case StatusUnknownFrom:
		return "start location is unknown"
	case StatusUnknownVia:
		return "via location is unknown"
	case StatusUnknownTo:
		return "destination is unknown"
	case StatusUnknownLocation:
		return "location is unknown"
	case StatusUnresolvableAddress:
		return "address could not be resolved"
	case StatusNoTrips:
		return "no trips found"
	case StatusInvalidDate:
		return "invalid date"
	case StatusServiceDown:
		return "service is temporarily unavailable"
	}
	return fmt.Sprintf("query failed with status %d", e.Status)
}

func (s QueryStatus) String() string {
	if s == StatusOK {
		return "ok"
	}
	return (&ProviderError{Status: s}).Error()
}
