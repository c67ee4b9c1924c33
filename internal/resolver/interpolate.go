package resolver

import (
	"math"
	"sort"

	"cabview.railmap.org/internal/railway"
)

type stationDistance struct {
	station  railway.Station
	distance float64
}

// Interpolate estimates the video time for a click that falls between
// stations of line. It takes the two stations nearest to the click and
// blends their start times by d1/(d1+d2), rounded to the nearest second.
// The two nearest stations are assumed to be adjacent in viewing order.
//
// Stations with unusable coordinates are ignored; fewer than two remaining
// stations yields no result.
func Interpolate(click railway.Point, line railway.Line) (int, bool) {
	if !click.Valid() {
		return 0, false
	}

	candidates := make([]stationDistance, 0, len(line.Stations))
	for _, s := range line.Stations {
		if !s.HasValidCoordinates() {
			continue
		}
		candidates = append(candidates, stationDistance{station: s, distance: click.DistanceTo(s.Point())})
	}
	if len(candidates) < 2 {
		return 0, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	s1, s2 := candidates[0], candidates[1]

	var ratio float64
	if total := s1.distance + s2.distance; total > 0 {
		ratio = s1.distance / total
	}

	t1 := float64(s1.station.StartTime)
	t2 := float64(s2.station.StartTime)
	return int(math.Floor(t1 + (t2-t1)*ratio + 0.5)), true
}
