package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "Lists remembered locations, most used first",
	RunE:  favorites,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists past searches, most recent first",
	RunE:  history,
}

func favorites(cmd *cobra.Command, args []string) error {
	repo, err := buildRepository()
	if err != nil {
		return err
	}

	favs, err := repo.Favorites()
	if err != nil {
		return err
	}

	for _, fav := range favs {
		fmt.Printf("%4d  %-40s from=%d via=%d to=%d\n",
			fav.ID, fav.Location.FullName(), fav.FromCount, fav.ViaCount, fav.ToCount)
	}
	return nil
}

func history(cmd *cobra.Command, args []string) error {
	repo, err := buildRepository()
	if err != nil {
		return err
	}

	searches, err := repo.History()
	if err != nil {
		return err
	}
	favs, err := repo.Favorites()
	if err != nil {
		return err
	}
	names := map[int64]string{}
	for _, fav := range favs {
		names[fav.ID] = fav.Location.FullName()
	}

	for _, s := range searches {
		route := names[s.FromFavorite]
		if s.ViaFavorite != 0 {
			route += " via " + names[s.ViaFavorite]
		}
		route += " -> " + names[s.ToFavorite]
		pin := " "
		if s.Pinned {
			pin = "*"
		}
		fmt.Printf("%s %s  %s\n", pin, s.LastUsed.Format("2006-01-02 15:04"), route)
	}
	return nil
}
