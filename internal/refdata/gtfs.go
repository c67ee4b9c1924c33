package refdata

import (
	"fmt"
	"os"

	"github.com/OneBusAway/go-gtfs"
)

// LoadGTFS builds a dataset from a static GTFS zip. Each route becomes a
// line; the stops its trips serve become that line's stations, in the order
// they are first reached. Stops without coordinates are skipped.
func LoadGTFS(b []byte) (*Dataset, error) {
	static, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("parse gtfs: %w", err)
	}

	var lines []Line
	for _, r := range static.Routes {
		name := r.LongName
		if name == "" {
			name = r.ShortName
		}
		lines = append(lines, Line{
			Code:       r.Id,
			Name:       name,
			NameFormal: r.ShortName,
			Color:      r.Color,
		})
	}

	var stations []Station
	seen := map[[2]string]bool{}
	for _, trip := range static.Trips {
		if trip.Route == nil {
			continue
		}
		for _, st := range trip.StopTimes {
			stop := st.Stop
			if stop == nil || stop.Latitude == nil || stop.Longitude == nil {
				continue
			}
			k := [2]string{trip.Route.Id, stop.Id}
			if seen[k] {
				continue
			}
			seen[k] = true
			stations = append(stations, Station{
				Code:     stop.Id,
				Name:     stop.Name,
				LineCode: trip.Route.Id,
				Lat:      *stop.Latitude,
				Lon:      *stop.Longitude,
			})
		}
	}

	return newDataset(lines, stations), nil
}

func LoadGTFSFile(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadGTFS(b)
}
