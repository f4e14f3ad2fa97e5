package transit

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagekit/transit/model"
	"github.com/voyagekit/transit/storage"
)

// Don't love this, but the merge step is finicky and needs testing on
// its own: the interleaving it guards against cannot be forced from
// the outside.

type stubQueryContext struct {
	earlier, later bool
}

func (c stubQueryContext) CanQueryEarlier() bool { return c.earlier }
func (c stubQueryContext) CanQueryLater() bool   { return c.later }

func whiteboxTrip(label string, dep time.Time) *model.Trip {
	line := model.NewLine("", "test", model.ProductSuburbanTrain, label, "")
	from := model.Location{Type: model.LocationTypeStation, ID: "alex", Name: "Alexanderplatz"}
	to := model.Location{Type: model.LocationTypeStation, ID: "zoo", Name: "Zoologischer Garten"}
	arr := dep.Add(14 * time.Minute)
	return model.NewTrip("", from, to, []model.Leg{
		&model.PublicLeg{
			Line:      line,
			Departure: model.Stop{Location: from, PlannedDeparture: &dep},
			Arrival:   model.Stop{Location: to, PlannedArrival: &arr},
		},
	})
}

// A search cancelled after handleResult's entry check but before the
// merge must not land its trips or pagination context: Search cancels
// and resets under r.mu, so mergeResult re-checks the context there.
func TestMergeResultRejectsSupersededSearch(t *testing.T) {
	repo := NewRepository("test", nil, storage.NewMemoryStorage(), RepositoryConfig{
		Logger: log.New(io.Discard, "", 0),
	})

	dep := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	first := &TripsResult{
		Status:  StatusOK,
		Trips:   []*model.Trip{whiteboxTrip("S7", dep)},
		Context: stubQueryContext{later: true},
	}
	merged, ok := repo.mergeResult(context.Background(), first)
	require.True(t, ok)
	require.Len(t, merged, 1)
	assert.Equal(t, PaginateLater, repo.Pagination())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	second := &TripsResult{
		Status:  StatusOK,
		Trips:   []*model.Trip{whiteboxTrip("S5", dep.Add(10 * time.Minute))},
		Context: stubQueryContext{earlier: true},
	}
	_, ok = repo.mergeResult(cancelled, second)
	assert.False(t, ok)

	// Neither the trip set nor the pagination context moved.
	assert.Len(t, repo.snapshot(), 1)
	assert.Equal(t, PaginateLater, repo.Pagination())
}
