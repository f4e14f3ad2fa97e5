// Package schedule implements a transit.Provider on top of a local
// timetable, stored as three CSV files: stations.csv, lines.csv and
// stop_times.csv. Runs repeat daily.
package schedule

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"github.com/voyagekit/transit/model"
)

type StationCSV struct {
	ID       string  `csv:"station_id"`
	Name     string  `csv:"station_name"`
	Place    string  `csv:"place"`
	Lat      float64 `csv:"lat"`
	Lon      float64 `csv:"lon"`
	Products string  `csv:"products"`
}

type LineCSV struct {
	ID      string `csv:"line_id"`
	Product string `csv:"product"`
	Label   string `csv:"label"`
	Name    string `csv:"line_name"`
	Color   string `csv:"color"`
}

type StopTimeCSV struct {
	LineID    string `csv:"line_id"`
	Run       int    `csv:"run"`
	StationID string `csv:"station_id"`
	Seq       int    `csv:"seq"`
	Arrival   string `csv:"arrival"`
	Departure string `csv:"departure"`
}

// One vehicle's daily pass over a line's stops, in stop order.
type run struct {
	line  model.Line
	stops []runStop
}

// Times are minutes since midnight, -1 when the run doesn't stop for
// boarding/alighting there.
type runStop struct {
	station   string
	arrival   int
	departure int
}

type stopRef struct {
	run  int
	stop int
}

func loadStations(dir, network string) (map[string]model.Location, error) {
	f, err := os.Open(filepath.Join(dir, "stations.csv"))
	if err != nil {
		return nil, errors.Wrap(err, "opening stations.csv")
	}
	defer f.Close()

	records := []*StationCSV{}
	if err := gocsv.Unmarshal(bom.NewReader(f), &records); err != nil {
		return nil, errors.Wrap(err, "unmarshaling stations csv")
	}

	stations := map[string]model.Location{}
	for i, rec := range records {
		if rec.ID == "" {
			return nil, errors.Errorf("station without id (row %d)", i+1)
		}
		if _, ok := stations[rec.ID]; ok {
			return nil, errors.Errorf("repeated station_id %q", rec.ID)
		}

		products := model.ProductSet(0)
		for _, c := range []byte(rec.Products) {
			p, ok := model.ProductFromCode(c)
			if !ok {
				return nil, errors.Errorf("unknown product code %q for station %q", string(c), rec.ID)
			}
			products |= model.NewProductSet(p)
		}

		stations[rec.ID] = model.Location{
			Type:     model.LocationTypeStation,
			ID:       rec.ID,
			Lat:      int(rec.Lat * 1e6),
			Lon:      int(rec.Lon * 1e6),
			Place:    rec.Place,
			Name:     rec.Name,
			Products: products,
		}
	}

	return stations, nil
}

func loadLines(dir, network string) (map[string]model.Line, error) {
	f, err := os.Open(filepath.Join(dir, "lines.csv"))
	if err != nil {
		return nil, errors.Wrap(err, "opening lines.csv")
	}
	defer f.Close()

	records := []*LineCSV{}
	if err := gocsv.Unmarshal(bom.NewReader(f), &records); err != nil {
		return nil, errors.Wrap(err, "unmarshaling lines csv")
	}

	lines := map[string]model.Line{}
	for _, rec := range records {
		if rec.ID == "" {
			return nil, errors.New("line without id")
		}
		if _, ok := lines[rec.ID]; ok {
			return nil, errors.Errorf("repeated line_id %q", rec.ID)
		}
		if len(rec.Product) != 1 {
			return nil, errors.Errorf("line %q has invalid product %q", rec.ID, rec.Product)
		}
		product, ok := model.ProductFromCode(rec.Product[0])
		if !ok {
			return nil, errors.Errorf("line %q has unknown product %q", rec.ID, rec.Product)
		}

		line := model.NewLine(rec.ID, network, product, rec.Label, rec.Name)
		if rec.Color != "" {
			if len(rec.Color) != 6 {
				return nil, errors.Errorf("line %q has invalid color %q", rec.ID, rec.Color)
			}
			raw, err := hex.DecodeString(rec.Color)
			if err != nil {
				return nil, errors.Errorf("line %q has invalid color %q", rec.ID, rec.Color)
			}
			line.Style = &model.Style{
				BackgroundColor: 0xFF<<24 | int(raw[0])<<16 | int(raw[1])<<8 | int(raw[2]),
				ForegroundColor: 0xFFFFFFFF,
			}
		}
		lines[rec.ID] = line
	}

	return lines, nil
}

// Parses "HH:MM" into minutes since midnight. Hours may exceed 23
// for runs crossing midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("found %d parts in %q", len(parts), s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 47 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

func loadRuns(dir string, stations map[string]model.Location, lines map[string]model.Line) ([]*run, error) {
	f, err := os.Open(filepath.Join(dir, "stop_times.csv"))
	if err != nil {
		return nil, errors.Wrap(err, "opening stop_times.csv")
	}
	defer f.Close()

	records := []*StopTimeCSV{}
	if err := gocsv.Unmarshal(bom.NewReader(f), &records); err != nil {
		return nil, errors.Wrap(err, "unmarshaling stop_times csv")
	}

	type runKey struct {
		line string
		run  int
	}
	grouped := map[runKey][]*StopTimeCSV{}
	order := []runKey{}
	for i, rec := range records {
		if _, ok := lines[rec.LineID]; !ok {
			return nil, errors.Errorf("unknown line_id %q (row %d)", rec.LineID, i+1)
		}
		if _, ok := stations[rec.StationID]; !ok {
			return nil, errors.Errorf("unknown station_id %q (row %d)", rec.StationID, i+1)
		}
		key := runKey{line: rec.LineID, run: rec.Run}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], rec)
	}

	runs := []*run{}
	for _, key := range order {
		recs := grouped[key]
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].Seq < recs[j].Seq
		})

		r := &run{line: lines[key.line]}
		for i, rec := range recs {
			stop := runStop{station: rec.StationID, arrival: -1, departure: -1}
			if rec.Arrival != "" {
				stop.arrival, err = parseClock(rec.Arrival)
				if err != nil {
					return nil, errors.Wrapf(err, "parsing arrival for line %q run %d", key.line, key.run)
				}
			}
			if rec.Departure != "" {
				stop.departure, err = parseClock(rec.Departure)
				if err != nil {
					return nil, errors.Wrapf(err, "parsing departure for line %q run %d", key.line, key.run)
				}
			}
			if stop.arrival < 0 && stop.departure < 0 {
				return nil, errors.Errorf("line %q run %d stop %d has neither arrival nor departure", key.line, key.run, i)
			}
			r.stops = append(r.stops, stop)
		}
		if len(r.stops) < 2 {
			return nil, errors.Errorf("line %q run %d has fewer than two stops", key.line, key.run)
		}
		runs = append(runs, r)
	}

	return runs, nil
}
