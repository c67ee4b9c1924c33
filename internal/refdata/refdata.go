// Package refdata is the railway reference dataset used to validate
// submissions and drive autocomplete: which lines exist and which stations,
// with coordinates, belong to each.
package refdata

import (
	"slices"
	"strings"
)

// Line is a railway line in the reference data.
type Line struct {
	Code        string `json:"lineCd"`
	CompanyCode string `json:"companyCd,omitempty"`
	Name        string `json:"lineName"`
	NameKana    string `json:"lineNameK,omitempty"`
	NameFormal  string `json:"lineNameH,omitempty"`
	Color       string `json:"lineColor,omitempty"`
}

// Station is a station of one line in the reference data.
type Station struct {
	Code      string  `json:"stationCd"`
	GroupCode string  `json:"stationGCd,omitempty"`
	Name      string  `json:"stationName"`
	NameKana  string  `json:"stationNameK,omitempty"`
	NameRoman string  `json:"stationNameR,omitempty"`
	LineCode  string  `json:"lineCd"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// Dataset is an immutable, in-memory reference dataset. A nil *Dataset is empty.
type Dataset struct {
	lines    []Line
	stations []Station
	byLine   map[string][]int
}

func newDataset(lines []Line, stations []Station) *Dataset {
	d := &Dataset{lines: lines, stations: stations, byLine: make(map[string][]int)}
	for i, s := range stations {
		d.byLine[s.LineCode] = append(d.byLine[s.LineCode], i)
	}
	return d
}

// Merge combines datasets in order. Lines and stations already present by
// code are not added again.
func Merge(sets ...*Dataset) *Dataset {
	var lines []Line
	var stations []Station
	seenLines := map[string]bool{}
	seenStations := map[[2]string]bool{}

	for _, d := range sets {
		if d == nil {
			continue
		}
		for _, l := range d.lines {
			if !seenLines[l.Code] {
				seenLines[l.Code] = true
				lines = append(lines, l)
			}
		}
		for _, s := range d.stations {
			k := [2]string{s.LineCode, s.Code}
			if !seenStations[k] {
				seenStations[k] = true
				stations = append(stations, s)
			}
		}
	}
	return newDataset(lines, stations)
}

func (d *Dataset) Counts() (lines, stations int) {
	if d == nil {
		return 0, 0
	}
	return len(d.lines), len(d.stations)
}

// FindLineByName returns the first line whose name matches exactly.
func (d *Dataset) FindLineByName(name string) (Line, bool) {
	if d == nil {
		return Line{}, false
	}
	i := slices.IndexFunc(d.lines, func(l Line) bool { return l.Name == name })
	if i < 0 {
		return Line{}, false
	}
	return d.lines[i], true
}

func (d *Dataset) FindLineByCode(code string) (Line, bool) {
	if d == nil {
		return Line{}, false
	}
	i := slices.IndexFunc(d.lines, func(l Line) bool { return l.Code == code })
	if i < 0 {
		return Line{}, false
	}
	return d.lines[i], true
}

// FindStationsByLine returns the stations of a line in dataset order.
func (d *Dataset) FindStationsByLine(lineCode string) []Station {
	if d == nil {
		return nil
	}
	positions := d.byLine[lineCode]
	out := make([]Station, 0, len(positions))
	for _, i := range positions {
		out = append(out, d.stations[i])
	}
	return out
}

// FindStationByName returns the station of lineCode whose name matches exactly.
func (d *Dataset) FindStationByName(name, lineCode string) (Station, bool) {
	if d == nil {
		return Station{}, false
	}
	for _, i := range d.byLine[lineCode] {
		if d.stations[i].Name == name {
			return d.stations[i], true
		}
	}
	return Station{}, false
}

// LineSuggestions returns lines whose name or kana name contains input.
// Empty input yields nothing. limit <= 0 means no limit.
func (d *Dataset) LineSuggestions(input string, limit int) []Line {
	if d == nil || input == "" {
		return []Line{}
	}
	out := []Line{}
	for _, l := range d.lines {
		if strings.Contains(l.Name, input) || strings.Contains(l.NameKana, input) {
			out = append(out, l)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// StationSuggestions returns stations of lineCode whose name or kana name
// contains input. Empty input yields nothing. limit <= 0 means no limit.
func (d *Dataset) StationSuggestions(input, lineCode string, limit int) []Station {
	if d == nil || input == "" {
		return []Station{}
	}
	out := []Station{}
	for _, i := range d.byLine[lineCode] {
		s := d.stations[i]
		if strings.Contains(s.Name, input) || strings.Contains(s.NameKana, input) {
			out = append(out, s)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// Lines returns a copy of every line.
func (d *Dataset) Lines() []Line {
	if d == nil {
		return nil
	}
	return slices.Clone(d.lines)
}
