// Package stationindex flattens a line collection into (station, line) pairs.
// An index is built once per load and never mutated; a reload builds a new one.
package stationindex

import (
	"iter"
	"slices"

	"github.com/tidwall/rtree"

	"cabview.railmap.org/internal/railway"
	"cabview.railmap.org/internal/utils"
)

// Entry pairs a station with the line that owns it. Both are read-only.
type Entry struct {
	Station railway.Station
	Line    railway.Line
}

type Index struct {
	lines   []railway.Line
	entries []Entry
	byKey   map[railway.LineKey]int
	tree    *rtree.RTree
}

// Build indexes lines in the given order. Stations keep their order within a
// line. Lines are copied, so later changes to the input are not observed.
// Stations without usable coordinates are still listed by All but never
// returned by Near.
func Build(lines []railway.Line) *Index {
	idx := &Index{
		lines: make([]railway.Line, 0, len(lines)),
		byKey: make(map[railway.LineKey]int, len(lines)),
		tree:  &rtree.RTree{},
	}

	for _, l := range lines {
		line := l.Clone()
		if _, dup := idx.byKey[line.Key()]; !dup {
			idx.byKey[line.Key()] = len(idx.lines)
		}
		idx.lines = append(idx.lines, line)

		for _, s := range line.Stations {
			pos := len(idx.entries)
			idx.entries = append(idx.entries, Entry{Station: s, Line: line})
			if !s.HasValidCoordinates() {
				continue
			}
			pt := [2]float64{s.Lat, s.Lon}
			idx.tree.Insert(pt, pt, pos)
		}
	}

	return idx
}

// Empty returns an index over no lines.
func Empty() *Index {
	return Build(nil)
}

// All yields every (station, line) pair in insertion order. The sequence can
// be ranged over any number of times.
func (idx *Index) All() iter.Seq2[railway.Station, railway.Line] {
	return func(yield func(railway.Station, railway.Line) bool) {
		if idx == nil {
			return
		}
		for _, e := range idx.entries {
			if !yield(e.Station, e.Line) {
				return
			}
		}
	}
}

// Entries returns a copy of the flattened pairs in insertion order.
func (idx *Index) Entries() []Entry {
	if idx == nil {
		return nil
	}
	return slices.Clone(idx.entries)
}

// Len is the number of stations in the index.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Lines returns the indexed lines in load order.
func (idx *Index) Lines() []railway.Line {
	if idx == nil {
		return nil
	}
	return slices.Clone(idx.lines)
}

// Line looks up a line by key. When a key was loaded more than once the first
// occurrence wins.
func (idx *Index) Line(key railway.LineKey) (railway.Line, bool) {
	if idx == nil {
		return railway.Line{}, false
	}
	i, ok := idx.byKey[key]
	if !ok {
		return railway.Line{}, false
	}
	return idx.lines[i], true
}

// Near returns the entries whose stations fall inside the box spanning
// radiusMeters around p, in insertion order. The box is a superset of the
// circle; callers still compare exact distances.
func (idx *Index) Near(p railway.Point, radiusMeters float64) []Entry {
	if idx == nil || !p.Valid() || radiusMeters <= 0 {
		return nil
	}

	bounds := utils.CalculateBounds(p.Lat, p.Lon, radiusMeters)
	if bounds.MinLat < -90 || bounds.MaxLat > 90 || bounds.MinLon < -180 || bounds.MaxLon > 180 {
		// The box wraps a pole or the antimeridian; scan instead.
		out := make([]Entry, 0, len(idx.entries))
		for _, e := range idx.entries {
			if e.Station.HasValidCoordinates() {
				out = append(out, e)
			}
		}
		return out
	}

	var positions []int
	idx.tree.Search(
		[2]float64{bounds.MinLat, bounds.MinLon},
		[2]float64{bounds.MaxLat, bounds.MaxLon},
		func(_, _ [2]float64, data interface{}) bool {
			if pos, ok := data.(int); ok {
				positions = append(positions, pos)
			}
			return true
		},
	)
	slices.Sort(positions)

	out := make([]Entry, 0, len(positions))
	for _, pos := range positions {
		out = append(out, idx.entries[pos])
	}
	return out
}
