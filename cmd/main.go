package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/voyagekit/transit"
	"github.com/voyagekit/transit/config"
	"github.com/voyagekit/transit/schedule"
	"github.com/voyagekit/transit/storage"
)

var rootCmd = &cobra.Command{
	Use:          "transit",
	Short:        "Transit trip planner",
	Long:         "Plans trips, lists departures and manages favorites for a transit network",
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "transit.yml", "Config file")
	rootCmd.AddCommand(tripsCmd)
	rootCmd.AddCommand(departuresCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(favoritesCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func buildStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		return storage.NewSQLiteStorage(storage.SQLiteConfig{
			OnDisk: true,
			Path:   cfg.Storage.Path,
		})
	case "postgres":
		return storage.NewPSQLStorage(cfg.Storage.ConnStr, false)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func buildRepository() (*transit.Repository, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	provider, err := schedule.Load(cfg.Network, cfg.Timetable)
	if err != nil {
		return nil, fmt.Errorf("loading timetable: %w", err)
	}

	store, err := buildStorage(cfg)
	if err != nil {
		return nil, err
	}

	return transit.NewRepository(cfg.Network, provider, store), nil
}

func buildProvider() (transit.Provider, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	provider, err := schedule.Load(cfg.Network, cfg.Timetable)
	if err != nil {
		return nil, fmt.Errorf("loading timetable: %w", err)
	}
	return provider, nil
}

// Parses "15:04" (today) or "2006-01-02 15:04". Empty means now.
func parseWhen(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	now := time.Now()
	if t, err := time.ParseInLocation("15:04", s, time.Local); err == nil {
		return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, time.Local), nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("'%s' is not on form HH:MM or YYYY-MM-DD HH:MM", s)
	}
	return t, nil
}
