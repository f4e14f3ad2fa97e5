package model

import (
	"fmt"
	"strings"
	"time"
)

// An ordered, non-empty sequence of legs from From to To.
type Trip struct {
	ID   string
	From Location
	To   Location
	Legs []Leg

	// Seats per class, when the network reports them.
	Capacity []int

	// Number of line changes, when reported. Nil means "infer
	// from the legs".
	NumChanges *int
}

// Builds a Trip, synthesizing a deterministic id when none is
// supplied. Two trips with identical leg identities, planned times
// and line labels synthesize the same id.
func NewTrip(id string, from, to Location, legs []Leg) *Trip {
	t := &Trip{ID: id, From: from, To: to, Legs: legs}
	if t.ID == "" {
		t.ID = t.buildID()
	}
	return t
}

func (t *Trip) buildID() string {
	parts := make([]string, 0, len(t.Legs))
	for _, leg := range t.Legs {
		switch l := leg.(type) {
		case *PublicLeg:
			parts = append(parts, strings.Join([]string{
				l.Departure.Location.Ident(),
				l.Arrival.Location.Ident(),
				fmt.Sprintf("%d", l.PlannedDepartureTime().Unix()),
				fmt.Sprintf("%d", l.PlannedArrivalTime().Unix()),
				l.Line.Label,
			}, "-"))
		case *IndividualLeg:
			parts = append(parts, l.Departure.Ident()+"-"+l.Arrival.Ident())
		}
	}
	return strings.Join(parts, "|")
}

func (t *Trip) FirstDepartureTime() time.Time {
	if len(t.Legs) == 0 {
		return time.Time{}
	}
	return t.Legs[0].DepartureTime()
}

func (t *Trip) LastArrivalTime() time.Time {
	if len(t.Legs) == 0 {
		return time.Time{}
	}
	return t.Legs[len(t.Legs)-1].ArrivalTime()
}

func (t *Trip) FirstPublicLeg() *PublicLeg {
	for _, leg := range t.Legs {
		if l, ok := leg.(*PublicLeg); ok {
			return l
		}
	}
	return nil
}

func (t *Trip) LastPublicLeg() *PublicLeg {
	for i := len(t.Legs) - 1; i >= 0; i-- {
		if l, ok := t.Legs[i].(*PublicLeg); ok {
			return l
		}
	}
	return nil
}

func (t *Trip) Duration() time.Duration {
	return t.LastArrivalTime().Sub(t.FirstDepartureTime())
}

// Duration from the first to the last public leg, ignoring leading
// and trailing individual legs. Zero when the trip has no public leg.
func (t *Trip) PublicDuration() time.Duration {
	first := t.FirstPublicLeg()
	last := t.LastPublicLeg()
	if first == nil || last == nil {
		return 0
	}
	return last.ArrivalTime().Sub(first.DepartureTime())
}

// Earliest known time across all legs.
func (t *Trip) MinTime() time.Time {
	var min time.Time
	for _, leg := range t.Legs {
		lt := leg.MinTime()
		if lt.IsZero() {
			continue
		}
		if min.IsZero() || lt.Before(min) {
			min = lt
		}
	}
	return min
}

// Latest known time across all legs.
func (t *Trip) MaxTime() time.Time {
	var max time.Time
	for _, leg := range t.Legs {
		lt := leg.MaxTime()
		if lt.IsZero() {
			continue
		}
		if max.IsZero() || lt.After(max) {
			max = lt
		}
	}
	return max
}

// Number of line changes: the reported count when present, else one
// less than the number of public legs.
func (t *Trip) Changes() int {
	if t.NumChanges != nil {
		return *t.NumChanges
	}
	n := 0
	for _, leg := range t.Legs {
		if _, ok := leg.(*PublicLeg); ok {
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return n - 1
}

// Reports whether the trip can still be ridden: no public leg may be
// cancelled at either end, and leg times must not run backwards.
func (t *Trip) Travelable() bool {
	var prev time.Time
	for _, leg := range t.Legs {
		if l, ok := leg.(*PublicLeg); ok {
			if l.Departure.DepartureCancelled || l.Arrival.ArrivalCancelled {
				return false
			}
		}
		dep := leg.DepartureTime()
		arr := leg.ArrivalTime()
		if !dep.IsZero() && !prev.IsZero() && dep.Before(prev) {
			return false
		}
		if !dep.IsZero() && !arr.IsZero() && arr.Before(dep) {
			return false
		}
		if !arr.IsZero() {
			prev = arr
		}
	}
	return true
}

// Key for collapsing near-identical trips across repeated queries:
// first departure, last arrival, and the sequence of public leg
// labels. Trips agreeing on all three are shown as one result, even
// if their stopping patterns differ.
func (t *Trip) DedupKey() string {
	labels := []string{}
	for _, leg := range t.Legs {
		if l, ok := leg.(*PublicLeg); ok {
			labels = append(labels, l.Line.Label)
		}
	}
	return fmt.Sprintf("%d|%d|%s",
		t.FirstDepartureTime().Unix(),
		t.LastArrivalTime().Unix(),
		strings.Join(labels, ","))
}
