package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [query]",
	Short: "Suggests locations matching a partial name",
	Args:  cobra.MinimumNArgs(1),
	RunE:  suggest,
}

var suggestLimit int

func init() {
	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "l", 10, "Max suggestions to list")
}

func suggest(cmd *cobra.Command, args []string) error {
	provider, err := buildProvider()
	if err != nil {
		return err
	}

	locations, err := provider.SuggestLocations(context.Background(), strings.Join(args, " "), suggestLimit)
	if err != nil {
		return err
	}

	for _, loc := range locations {
		fmt.Printf("%-12s %s\n", loc.ID, loc.FullName())
	}
	return nil
}
