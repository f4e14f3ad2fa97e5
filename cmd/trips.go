package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/voyagekit/transit"
	"github.com/voyagekit/transit/model"
)

var tripsCmd = &cobra.Command{
	Use:   "trips",
	Short: "Searches trips between two locations",
	RunE:  trips,
}

var (
	fromName string
	viaName  string
	toName   string
	whenStr  string
	arriveBy bool
	products string
	more     int
)

func init() {
	tripsCmd.Flags().StringVarP(&fromName, "from", "f", "", "Start location (station id or name)")
	tripsCmd.Flags().StringVarP(&viaName, "via", "v", "", "Via location")
	tripsCmd.Flags().StringVarP(&toName, "to", "t", "", "Destination")
	tripsCmd.Flags().StringVarP(&whenStr, "at", "a", "", "Departure (or arrival) time")
	tripsCmd.Flags().BoolVarP(&arriveBy, "arrive", "A", false, "Treat time as latest arrival")
	tripsCmd.Flags().StringVarP(&products, "products", "p", "", "Product codes, e.g. SUB")
	tripsCmd.Flags().IntVarP(&more, "more", "m", 0, "Extend the search this many windows into the future")
}

func trips(cmd *cobra.Command, args []string) error {
	if fromName == "" || toName == "" {
		return fmt.Errorf("both --from and --to are required")
	}

	when, err := parseWhen(whenStr)
	if err != nil {
		return err
	}

	var productSet model.ProductSet
	for _, c := range []byte(products) {
		p, ok := model.ProductFromCode(c)
		if !ok {
			return fmt.Errorf("unknown product code %q", string(c))
		}
		productSet |= model.NewProductSet(p)
	}

	repo, err := buildRepository()
	if err != nil {
		return err
	}

	query := transit.TripQuery{
		From:     model.Location{Type: model.LocationTypeStation, Name: fromName},
		To:       model.Location{Type: model.LocationTypeStation, Name: toName},
		When:     when,
		ArriveBy: arriveBy,
		Products: productSet,
	}
	if viaName != "" {
		via := model.Location{Type: model.LocationTypeStation, Name: viaName}
		query.Via = &via
	}

	ctx := context.Background()
	repo.Search(ctx, query)
	result, err := awaitTrips(repo)
	if err != nil {
		return err
	}

	for i := 0; i < more; i++ {
		if err := repo.SearchMore(ctx, true); err != nil {
			return err
		}
		result, err = awaitTrips(repo)
		if err != nil {
			return err
		}
	}

	for _, trip := range result {
		printTrip(trip)
	}
	return nil
}

// Waits for the current search to settle: the first non-loading
// update or error.
func awaitTrips(repo *transit.Repository) ([]*model.Trip, error) {
	for {
		select {
		case state := <-repo.Updates():
			if state.Loading {
				continue
			}
			return state.Trips, nil
		case err := <-repo.QueryErrors():
			return nil, err
		case err := <-repo.MoreErrors():
			return nil, err
		case <-time.After(30 * time.Second):
			return nil, fmt.Errorf("timed out waiting for results")
		}
	}
}

func printTrip(trip *model.Trip) {
	fmt.Printf("%s - %s (%d min, %d changes)\n",
		trip.FirstDepartureTime().Format("15:04"),
		trip.LastArrivalTime().Format("15:04"),
		int(trip.Duration().Minutes()),
		trip.Changes(),
	)
	for _, leg := range trip.Legs {
		switch l := leg.(type) {
		case *model.PublicLeg:
			fmt.Printf("    %s %s %s -> %s %s\n",
				l.DepartureTime().Format("15:04"),
				l.Line.Label,
				l.Departure.Location.FullName(),
				l.Arrival.Location.FullName(),
				l.ArrivalTime().Format("15:04"),
			)
		case *model.IndividualLeg:
			fmt.Printf("    %s %s %s -> %s %s\n",
				l.DepartureTime().Format("15:04"),
				l.Mode,
				l.Departure.FullName(),
				l.Arrival.FullName(),
				l.ArrivalTime().Format("15:04"),
			)
		}
	}
}
