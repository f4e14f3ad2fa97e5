package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/voyagekit/transit"
	"github.com/voyagekit/transit/model"
)

// Pagination capabilities of a scripted result.
type PageContext struct {
	Earlier bool
	Later   bool
}

func (p PageContext) CanQueryEarlier() bool { return p.Earlier }
func (p PageContext) CanQueryLater() bool   { return p.Later }

type scriptStep struct {
	result *transit.TripsResult
	err    error
}

// ScriptedProvider plays back a fixed sequence of results. Each query
// (initial or pagination) consumes the next step. When a Gate channel
// is set, queries block on it first, so tests can hold a query in
// flight and observe cancellation.
type ScriptedProvider struct {
	// Receives one value per query before that query returns.
	Gate chan struct{}

	mu      sync.Mutex
	steps   []scriptStep
	Queries []transit.TripQuery
	More    []bool
}

func (p *ScriptedProvider) Enqueue(result *transit.TripsResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, scriptStep{result: result, err: err})
}

func (p *ScriptedProvider) next(ctx context.Context) (*transit.TripsResult, error) {
	if p.Gate != nil {
		select {
		case <-p.Gate:
			// A query cancelled while gated hands its token to
			// whichever query superseded it.
			if ctx.Err() != nil {
				p.Gate <- struct{}{}
				return nil, ctx.Err()
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.steps) == 0 {
		return &transit.TripsResult{Status: transit.StatusServiceDown}, nil
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	return step.result, step.err
}

func (p *ScriptedProvider) QueryTrips(ctx context.Context, query transit.TripQuery) (*transit.TripsResult, error) {
	p.mu.Lock()
	p.Queries = append(p.Queries, query)
	p.More = append(p.More, false)
	p.mu.Unlock()
	return p.next(ctx)
}

func (p *ScriptedProvider) QueryMoreTrips(ctx context.Context, qc transit.QueryContext, later bool) (*transit.TripsResult, error) {
	p.mu.Lock()
	p.More = append(p.More, true)
	p.mu.Unlock()
	return p.next(ctx)
}

func (p *ScriptedProvider) QueryDepartures(ctx context.Context, stationID string, when time.Time, limit int) ([]transit.Departure, error) {
	return nil, nil
}

func (p *ScriptedProvider) SuggestLocations(ctx context.Context, constraint string, limit int) ([]model.Location, error) {
	return nil, nil
}

func (p *ScriptedProvider) QueryNearbyLocations(ctx context.Context, at model.Point, limit int) ([]model.Location, error) {
	return nil, nil
}
