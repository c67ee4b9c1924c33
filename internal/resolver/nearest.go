// Package resolver turns a map click into a station or a video timestamp.
// Neither resolver treats a miss as an error: the second return value
// reports whether anything was found.
package resolver

import (
	"cabview.railmap.org/internal/railway"
	"cabview.railmap.org/internal/stationindex"
)

// DefaultThresholdMeters is how close a click must be to count as on a station.
const DefaultThresholdMeters = 100.0

// nearSearchSlack widens the R-tree box so stations exactly at the threshold
// edge are never lost to rounding in the box calculation.
const nearSearchSlack = 1.01

// Match is a station hit by a click.
type Match struct {
	Station  railway.Station
	Line     railway.Line
	Distance float64
}

// NearestFunc finds the closest station strictly within thresholdMeters.
type NearestFunc func(click railway.Point, idx *stationindex.Index, thresholdMeters float64) (Match, bool)

// Strategy returns the R-tree backed lookup when spatial is set and the linear
// scan otherwise. Both return the same result for the same input.
func Strategy(spatial bool) NearestFunc {
	if spatial {
		return NearestIndexed
	}
	return Nearest
}

// Nearest scans every station in index order. A station qualifies only when
// its distance is strictly below thresholdMeters; on equal distances the
// station seen first wins.
func Nearest(click railway.Point, idx *stationindex.Index, thresholdMeters float64) (Match, bool) {
	if !click.Valid() || !(thresholdMeters > 0) {
		return Match{}, false
	}

	var best Match
	found := false
	for s, l := range idx.All() {
		consider(&best, &found, click, s, l, thresholdMeters)
	}
	return best, found
}

// NearestIndexed narrows the candidates with the index's R-tree before
// applying the same comparison as Nearest.
func NearestIndexed(click railway.Point, idx *stationindex.Index, thresholdMeters float64) (Match, bool) {
	if !click.Valid() || !(thresholdMeters > 0) {
		return Match{}, false
	}

	var best Match
	found := false
	for _, e := range idx.Near(click, thresholdMeters*nearSearchSlack) {
		consider(&best, &found, click, e.Station, e.Line, thresholdMeters)
	}
	return best, found
}

func consider(best *Match, found *bool, click railway.Point, s railway.Station, l railway.Line, threshold float64) {
	if !s.HasValidCoordinates() {
		return
	}
	d := click.DistanceTo(s.Point())
	if d >= threshold {
		return
	}
	if *found && d >= best.Distance {
		return
	}
	*best = Match{Station: s, Line: l, Distance: d}
	*found = true
}
