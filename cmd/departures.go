package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var departuresCmd = &cobra.Command{
	Use:   "departures [station id]",
	Short: "Lists upcoming departures from a station",
	Args:  cobra.ExactArgs(1),
	RunE:  departures,
}

var (
	departuresWhen  string
	departuresLimit int
)

func init() {
	departuresCmd.Flags().StringVarP(&departuresWhen, "at", "a", "", "Board time")
	departuresCmd.Flags().IntVarP(&departuresLimit, "limit", "l", 10, "Max departures to list")
}

func departures(cmd *cobra.Command, args []string) error {
	when, err := parseWhen(departuresWhen)
	if err != nil {
		return err
	}

	provider, err := buildProvider()
	if err != nil {
		return err
	}

	deps, err := provider.QueryDepartures(context.Background(), args[0], when, departuresLimit)
	if err != nil {
		return err
	}

	for _, dep := range deps {
		t := dep.Stop.DepartureTime(false)
		clock := "--:--"
		if t != nil {
			clock = t.Format("15:04")
		}
		dest := ""
		if dep.Destination != nil {
			dest = dep.Destination.FullName()
		}
		fmt.Printf("%s %-6s %s\n", clock, dep.Line.Label, dest)
	}
	return nil
}
